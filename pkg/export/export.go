// Package export writes baked masks as shader inputs: a block.properties
// listing that maps each mask id to its blocks, and a decoder header with
// one bool function per flag.
package export

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/duynguyendang/blockbaker/pkg/bake"
	"go.uber.org/zap"
)

// DecoderGuard is the include guard of the decoder header.
const DecoderGuard = "BLOCK_PROPERTIES_DECODER"

// WriteProperties writes one "block.<id> = ..." entry per mask, each
// preceded by a comment naming its flags in input order.
func WriteProperties(w io.Writer, res *bake.Result) error {
	bw := bufio.NewWriter(w)
	for _, m := range res.Masks {
		fmt.Fprintf(bw, "\n# %s\n", strings.Join(orderedFlags(res.Flags, m.Flags), ", "))
		fmt.Fprintf(bw, "block.%d = %s\n", m.ID, m.Blocks)
	}
	return bw.Flush()
}

// WriteDecoder writes the decoder header. A flag matching no mask
// decodes to false.
func WriteDecoder(w io.Writer, res *bake.Result) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "#if !defined(%s)\n#define %s\n", DecoderGuard, DecoderGuard)
	for _, flag := range res.Flags {
		ids := res.IDs(flag)
		body := "false"
		if len(ids) > 0 {
			tests := make([]string, len(ids))
			for i, id := range ids {
				tests[i] = fmt.Sprintf("id == %d", id)
			}
			body = strings.Join(tests, " || ")
		}
		fmt.Fprintf(bw, "\nbool %s(int id) {\n    return %s;\n}\n", flag, body)
	}
	fmt.Fprint(bw, "\n#endif // EOF\n")
	return bw.Flush()
}

func orderedFlags(order []string, set bake.FlagSet) []string {
	out := make([]string, 0, set.Len())
	for _, f := range order {
		if set.Has(f) {
			out = append(out, f)
		}
	}
	return out
}

// Exporter bakes a configuration and writes both artifacts.
type Exporter struct {
	baker  *bake.Baker
	logger *zap.Logger
}

// NewExporter creates an Exporter around baker.
func NewExporter(baker *bake.Baker, logger *zap.Logger) *Exporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{baker: baker, logger: logger}
}

// Export bakes cfg and writes its outputs, returning the baked result.
func (e *Exporter) Export(cfg *Config) (*bake.Result, error) {
	e.logger.Info("Baking masks", zap.Int("flags", len(cfg.Flags)))
	res, err := e.baker.Bake(cfg.Flags.Bake())
	if err != nil {
		return nil, err
	}
	e.logger.Info("Baked masks", zap.Int("masks", len(res.Masks)))

	if err := writeFile(cfg.PropertiesPath(), res, WriteProperties); err != nil {
		return nil, err
	}
	if err := writeFile(cfg.DecoderPath(), res, WriteDecoder); err != nil {
		return nil, err
	}
	e.logger.Info("Export complete",
		zap.String("properties", cfg.PropertiesPath()),
		zap.String("decoder", cfg.DecoderPath()))
	return res, nil
}

func writeFile(path string, res *bake.Result, write func(io.Writer, *bake.Result) error) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := write(f, res); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
