package knowledge

import "strings"

// builtinEntries is the school data shipped with the binary. It is the last
// loader strategy and can be disabled so a missing data file fails loudly.
var builtinEntries = []Entry{
	{
		Question: "តើនាយកសាលាឈ្មោះអ្វី?",
		Answer:   "នាយកសាលាគឺលោក សុខ វណ្ណា។",
	},
	{
		Question: "តើសាលាបើកម៉ោងប៉ុន្មាន?",
		Answer:   "សាលាបើកពីម៉ោង ៧:០០ ព្រឹក ដល់ម៉ោង ៥:០០ ល្ងាច ពីថ្ងៃច័ន្ទ ដល់ថ្ងៃសៅរ៍។",
	},
	{
		Question: "តើសាលាមានទីតាំងនៅឯណា?",
		Answer:   "សាលាមានទីតាំងនៅសង្កាត់ព្រែកលៀប ខណ្ឌជ្រោយចង្វារ រាជធានីភ្នំពេញ។",
	},
	{
		Question: "តើលេខទូរស័ព្ទសាលាគឺអ្វី?",
		Answer:   "សូមទាក់ទងការិយាល័យសាលាតាមលេខ ០២៣ ៩៩៩ ៨៨៨ (ម៉ោងធ្វើការ)។",
	},
	{
		Question: "តើត្រូវចុះឈ្មោះចូលរៀនដោយរបៀបណា?",
		Answer:   "សូមយកសំបុត្រកំណើត រូបថត ៤x៦ ចំនួន ៤ សន្លឹក និងព្រឹត្តិបត្រពិន្ទុ មកការិយាល័យសាលា។",
	},
	{
		Question: "តើថ្លៃសិក្សាប៉ុន្មាន?",
		Answer:   "សាលារដ្ឋមិនយកថ្លៃសិក្សាទេ។ ថ្នាក់បំប៉នបន្ថែមមានថ្លៃតាមមុខវិជ្ជា។",
	},
	{
		Question: "តើសិស្សត្រូវពាក់ឯកសណ្ឋានអ្វី?",
		Answer:   "អាវពណ៌ស និងខោ ឬសំពត់ពណ៌ខៀវចាស់ ព្រមទាំងពាក់ស្លាកឈ្មោះជារៀងរាល់ថ្ងៃ។",
	},
	{
		Question: "តើសិស្សអាចសុំច្បាប់ឈប់រៀនដោយរបៀបណា?",
		Answer:   "មាតាបិតា ឬអាណាព្យាបាលត្រូវសរសេរលិខិតសុំច្បាប់ ឬទូរស័ព្ទមកគ្រូបន្ទុកថ្នាក់។",
	},
	{
		Question: "តើសាលាមានក្លឹបអ្វីខ្លះ?",
		Answer:   "ក្លឹបភាសាអង់គ្លេស ក្លឹបវិទ្យាសាស្ត្រ ក្លឹបកីឡា និងក្លឹបសិល្បៈ។",
	},
	{
		Question: "តើសាលាមានមុខវិជ្ជាអ្វីខ្លះ?",
		Answer:   "ភាសាខ្មែរ គណិតវិទ្យា រូបវិទ្យា គីមីវិទ្យា ជីវវិទ្យា ប្រវត្តិវិទ្យា ភូមិវិទ្យា ភាសាអង់គ្លេស និងកុំព្យូទ័រ។",
	},
	{
		Question: "តើការប្រឡងឆមាសទី១ ធ្វើនៅពេលណា?",
		Answer:   "ការប្រឡងឆមាសទី១ ធ្វើនៅសប្តាហ៍ទី២ នៃខែមីនា។",
	},
	{
		Question: "តើបណ្ណាល័យបើកម៉ោងប៉ុន្មាន?",
		Answer:   "បណ្ណាល័យបើកពីម៉ោង ៧:៣០ ព្រឹក ដល់ម៉ោង ៤:៣០ ល្ងាច។",
	},
}

// builtinSections groups the builtin questions for the outline.
var builtinSections = []struct {
	title     string
	questions []int
}{
	{"🏫 ព័ត៌មានទូទៅ", []int{0, 1, 2, 3}},
	{"📝 ការចុះឈ្មោះ និងថ្លៃសិក្សា", []int{4, 5}},
	{"🎒 ជីវិតសិស្ស", []int{6, 7, 8}},
	{"📖 ការសិក្សា", []int{9, 10, 11}},
}

func builtinOutline() string {
	var sb strings.Builder
	sb.WriteString("📚 សំណួរដែលអាចសួរបាន (Offline)\n")
	for _, sec := range builtinSections {
		sb.WriteString("\n")
		sb.WriteString(sec.title)
		sb.WriteString("\n")
		for _, i := range sec.questions {
			sb.WriteString("- ")
			sb.WriteString(builtinEntries[i].Question)
			sb.WriteString("\n")
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

// Builtin returns the compiled-in knowledge base.
func Builtin() (*Base, error) {
	return FromEntries("builtin", builtinOutline(), builtinEntries)
}
