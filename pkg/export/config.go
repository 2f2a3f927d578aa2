package export

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	apperrors "github.com/duynguyendang/blockbaker/pkg/common/errors"
	"github.com/duynguyendang/blockbaker/pkg/bake"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var (
	validate     *validator.Validate
	flagNameExpr = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

func init() {
	validate = validator.New()
	// Flag names become function names in the decoder.
	_ = validate.RegisterValidation("flagname", func(fl validator.FieldLevel) bool {
		return flagNameExpr.MatchString(fl.Field().String())
	})
}

// Flag is one named expression of an export configuration.
type Flag struct {
	Name       string `json:"name" validate:"required,flagname"`
	Expression string `json:"expression" validate:"required"`
}

// Flags keeps flag order, which fixes the order of decoder functions.
type Flags []Flag

// UnmarshalYAML decodes a mapping of flag name to expression.
func (f *Flags) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: flags must be a mapping of name to expression", node.Line)
	}
	seen := make(map[string]struct{}, len(node.Content)/2)
	out := make(Flags, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		var name, expression string
		if err := node.Content[i].Decode(&name); err != nil {
			return err
		}
		if err := node.Content[i+1].Decode(&expression); err != nil {
			return fmt.Errorf("flag %s: %w", name, err)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("line %d: duplicate flag %q", node.Content[i].Line, name)
		}
		seen[name] = struct{}{}
		out = append(out, Flag{Name: name, Expression: expression})
	}
	*f = out
	return nil
}

// Bake returns the flags in bake form.
func (f Flags) Bake() []bake.Flag {
	out := make([]bake.Flag, len(f))
	for i, flag := range f {
		out[i] = bake.Flag{Name: flag.Name, Expression: flag.Expression}
	}
	return out
}

// Config describes one export: which flags to bake and where to write.
// Relative output paths are resolved against the directory of the
// configuration file.
type Config struct {
	PropertiesFile string `yaml:"properties_file" json:"properties_file" validate:"required"`
	DecoderFile    string `yaml:"decoder_file" json:"decoder_file" validate:"required"`
	Flags          Flags  `yaml:"flags" json:"flags" validate:"min=1,dive"`

	dir string
}

// ParseConfig decodes a YAML or JSON configuration.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode export config: %w: %w", apperrors.ErrInvalidInput, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadConfig reads and validates the configuration at path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read export config: %w", err)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cfg.dir = filepath.Dir(path)
	return cfg, nil
}

// Validate checks required fields and flag names.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			v := verrs[0]
			return fmt.Errorf("invalid export config: %s failed %q: %w", v.Namespace(), v.Tag(), apperrors.ErrInvalidInput)
		}
		return fmt.Errorf("invalid export config: %w: %w", apperrors.ErrInvalidInput, err)
	}
	return nil
}

// PropertiesPath returns the resolved properties output path.
func (c *Config) PropertiesPath() string { return c.resolve(c.PropertiesFile) }

// DecoderPath returns the resolved decoder output path.
func (c *Config) DecoderPath() string { return c.resolve(c.DecoderFile) }

func (c *Config) resolve(p string) string {
	if filepath.IsAbs(p) || c.dir == "" {
		return p
	}
	return filepath.Join(c.dir, p)
}
