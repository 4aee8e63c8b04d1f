package knowledge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	domerrors "github.com/ngspreakleap/kalyan-linebot-go/internal/errors"
	"github.com/ngspreakleap/kalyan-linebot-go/internal/logger"
	"github.com/ngspreakleap/kalyan-linebot-go/internal/r2client"
)

// Loader is one named strategy for obtaining a knowledge base. Load returns
// an error wrapping domerrors.ErrSourceNotFound when its source is absent;
// any other error means the source exists but is unusable.
type Loader interface {
	Name() string
	Load(ctx context.Context) (*Base, error)
}

// LoadFirst tries loaders in order and returns the first base found. Sources
// are never merged. A source that exists but fails to parse stops the search
// rather than silently falling through to a lower-priority one.
func LoadFirst(ctx context.Context, log *logger.Logger, loaders ...Loader) (*Base, error) {
	for _, l := range loaders {
		base, err := l.Load(ctx)
		if errors.Is(err, domerrors.ErrSourceNotFound) {
			if log != nil {
				log.WithField("loader", l.Name()).Debug("Knowledge base source not found")
			}
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load knowledge base: %w", err)
		}
		if log != nil {
			log.WithFields(map[string]any{
				"loader":      l.Name(),
				"source":      base.Source(),
				"entries":     base.Len(),
				"has_outline": base.Outline() != "",
			}).Info("Knowledge base loaded")
		}
		return base, nil
	}
	return nil, domerrors.ErrNoKnowledgeBase
}

// FileLoader reads a JSON, YAML or TOML file chosen by extension.
type FileLoader struct {
	Path string
	// FS overrides the OS filesystem, mainly in tests.
	FS fs.FS
}

// Name implements Loader.
func (l FileLoader) Name() string {
	return "file:" + l.Path
}

// Load implements Loader.
func (l FileLoader) Load(_ context.Context) (*Base, error) {
	format, err := FormatFromPath(l.Path)
	if err != nil {
		return nil, domerrors.NewSourceError("file", l.Path, err)
	}

	var data []byte
	if l.FS != nil {
		data, err = fs.ReadFile(l.FS, l.Path)
	} else {
		data, err = os.ReadFile(l.Path)
	}
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", l.Path, domerrors.ErrSourceNotFound)
	}
	if err != nil {
		return nil, domerrors.NewSourceError("file", l.Path, err)
	}

	base, err := Parse(format, string(format)+":"+l.Path, data)
	if err != nil {
		return nil, domerrors.NewSourceError("file", l.Path, err)
	}
	return base, nil
}

// FileLoaders builds one FileLoader per path, preserving priority order.
func FileLoaders(paths ...string) []Loader {
	loaders := make([]Loader, 0, len(paths))
	for _, p := range paths {
		loaders = append(loaders, FileLoader{Path: p})
	}
	return loaders
}

// MaxObjectSize caps the decoded size of a knowledge base read from object storage.
const MaxObjectSize = 16 << 20

// ObjectDownloader fetches an object body by key.
type ObjectDownloader interface {
	Download(ctx context.Context, key string) (io.ReadCloser, string, error)
}

// ObjectLoader reads a knowledge base published to object storage. Keys
// ending in ".zst" are zstd-decompressed before parsing.
type ObjectLoader struct {
	Client ObjectDownloader
	Key    string
}

// Name implements Loader.
func (l ObjectLoader) Name() string {
	return "r2:" + l.Key
}

// Load implements Loader.
func (l ObjectLoader) Load(ctx context.Context) (*Base, error) {
	if l.Client == nil || l.Key == "" {
		return nil, fmt.Errorf("object storage not configured: %w", domerrors.ErrSourceNotFound)
	}
	format, err := FormatFromPath(l.Key)
	if err != nil {
		return nil, domerrors.NewSourceError("r2", l.Key, err)
	}

	body, etag, err := l.Client.Download(ctx, l.Key)
	if errors.Is(err, r2client.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", l.Key, domerrors.ErrSourceNotFound)
	}
	if err != nil {
		return nil, domerrors.NewSourceError("r2", l.Key, err)
	}
	defer func() { _ = body.Close() }()

	var data []byte
	if r2client.IsCompressedKey(l.Key) {
		data, err = r2client.DecompressAll(body, MaxObjectSize)
	} else {
		data, err = io.ReadAll(io.LimitReader(body, MaxObjectSize))
	}
	if err != nil {
		return nil, domerrors.NewSourceError("r2", l.Key, err)
	}

	source := fmt.Sprintf("%s:r2://%s", format, l.Key)
	if etag != "" {
		source += "@" + etag
	}
	base, err := Parse(format, source, data)
	if err != nil {
		return nil, domerrors.NewSourceError("r2", l.Key, err)
	}
	return base, nil
}

// BuiltinLoader serves the knowledge base compiled into the binary.
type BuiltinLoader struct {
	Disabled bool
}

// Name implements Loader.
func (l BuiltinLoader) Name() string {
	return "builtin"
}

// Load implements Loader.
func (l BuiltinLoader) Load(_ context.Context) (*Base, error) {
	if l.Disabled {
		return nil, fmt.Errorf("builtin disabled: %w", domerrors.ErrSourceNotFound)
	}
	return Builtin()
}
