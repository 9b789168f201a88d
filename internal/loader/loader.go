// Package loader reads form definitions and answer sets from files, fs.FS
// entries and HTTP endpoints. YAML payloads are normalised to JSON so the
// rest of the engine only ever sees JSON documents.
package loader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-formrules/pkg/schema"
)

// ErrTooLarge is returned when a payload exceeds LoaderOptions.MaxBytes.
var ErrTooLarge = errors.New("loader: payload exceeds size limit")

// Loader implements schema.Loader by delegating to file, fs.FS, or HTTP
// strategies.
type Loader struct {
	fs        fs.FS
	http      *http.Client
	allowHTTP bool
	timeout   time.Duration
	maxBytes  int64
	logger    zerolog.Logger
}

var _ schema.Loader = (*Loader)(nil)

// New constructs a Loader from pre-resolved options.
func New(options schema.LoaderOptions) *Loader {
	timeout := options.RequestTimeout

	var httpClient *http.Client
	switch {
	case options.HTTPClient != nil:
		clone := *options.HTTPClient
		if timeout > 0 && clone.Timeout == 0 {
			clone.Timeout = timeout
		}
		httpClient = &clone
	case options.AllowHTTPFallback:
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Loader{
		fs:        options.FileSystem,
		http:      httpClient,
		allowHTTP: httpClient != nil,
		timeout:   timeout,
		maxBytes:  options.MaxBytes,
		logger:    zerolog.Nop(),
	}
}

// WithLogger returns a copy of the loader that traces loads to logger.
func (l *Loader) WithLogger(logger zerolog.Logger) *Loader {
	clone := *l
	clone.logger = logger
	return &clone
}

// Load fetches a document from src and wraps it in a schema.Document. YAML
// sources are converted to JSON first.
func (l *Loader) Load(ctx context.Context, src schema.Source) (schema.Document, error) {
	if src == nil {
		return schema.Document{}, errors.New("loader: source is nil")
	}

	var (
		data []byte
		err  error
	)

	switch src.Kind() {
	case schema.SourceKindFile:
		data, err = loadFile(ctx, src.Location(), l.maxBytes)
	case schema.SourceKindFS:
		data, err = loadFromFS(ctx, l.fs, src.Location(), l.maxBytes)
	case schema.SourceKindURL:
		if !l.allowHTTP {
			return schema.Document{}, errors.New("loader: http support disabled")
		}
		data, err = loadHTTP(ctx, l.http, src.Location(), l.timeout, l.maxBytes)
	default:
		err = fmt.Errorf("loader: unsupported source kind %q", src.Kind())
	}
	if err != nil {
		return schema.Document{}, fmt.Errorf("loader: load %s: %w", src.Location(), err)
	}

	if schema.FormatOf(src) == schema.FormatYAML {
		data, err = YAMLToJSON(data)
		if err != nil {
			return schema.Document{}, fmt.Errorf("loader: %s: %w", src.Location(), err)
		}
	}

	l.logger.Debug().
		Str("source", src.Location()).
		Str("kind", string(src.Kind())).
		Int("bytes", len(data)).
		Msg("document loaded")
	return schema.NewDocument(src, data)
}

// YAMLToJSON converts a YAML document to its JSON encoding.
func YAMLToJSON(data []byte) ([]byte, error) {
	var value any
	if err := yaml.Unmarshal(data, &value); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	normalised, err := jsonValue(value)
	if err != nil {
		return nil, err
	}
	out, err := json.Marshal(normalised)
	if err != nil {
		return nil, fmt.Errorf("encode json: %w", err)
	}
	return out, nil
}

// jsonValue rewrites the map[any]any values yaml may produce for non-string
// keys into map[string]any.
func jsonValue(value any) (any, error) {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			converted, err := jsonValue(item)
			if err != nil {
				return nil, err
			}
			out[key] = converted
		}
		return out, nil
	case map[any]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			converted, err := jsonValue(item)
			if err != nil {
				return nil, err
			}
			out[fmt.Sprint(key)] = converted
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			converted, err := jsonValue(item)
			if err != nil {
				return nil, err
			}
			out[i] = converted
		}
		return out, nil
	default:
		return v, nil
	}
}

func readLimited(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w (%d bytes)", ErrTooLarge, limit)
	}
	return data, nil
}
