package config

import (
	"fmt"
	"os"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/JonMunkholm/VotersList/internal/core"
)

// Load reads configuration from environment variables.
// It applies defaults for unset values and validates the result.
func Load() (*Config, error) {
	cfg, err := Parse()
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// Parse reads configuration from environment variables without validating
// it, so callers can apply overrides such as command-line flags first.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := loadStruct(reflect.ValueOf(cfg).Elem()); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}
	return cfg, nil
}

// loadStruct recursively populates struct fields from environment variables.
func loadStruct(v reflect.Value) error {
	t := v.Type()

	for i := range t.NumField() {
		field := t.Field(i)
		fieldVal := v.Field(i)

		if !fieldVal.CanSet() {
			continue
		}

		if field.Type.Kind() == reflect.Struct && field.Type != reflect.TypeOf(time.Time{}) {
			if err := loadStruct(fieldVal); err != nil {
				return err
			}
			continue
		}

		envName := field.Tag.Get("env")
		if envName == "" {
			continue
		}
		envAlt := field.Tag.Get("envAlt")
		defaultVal := field.Tag.Get("default")
		required := field.Tag.Get("required") == "true"

		value := os.Getenv(envName)
		if value == "" && envAlt != "" {
			value = os.Getenv(envAlt)
		}

		if value == "" {
			if required {
				return fmt.Errorf("required environment variable %s is not set", envName)
			}
			value = defaultVal
		}

		if value == "" {
			continue
		}

		if err := setField(fieldVal, value); err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", envName, value, err)
		}
	}

	return nil
}

// setField sets a reflect.Value from a string based on its type.
func setField(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid duration: %w", err)
			}
			field.Set(reflect.ValueOf(d))
			return nil
		}
		i, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer: %w", err)
		}
		field.SetInt(i)

	case reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid number: %w", err)
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type: %s", field.Type().Elem().Kind())
		}
		var out []string
		for _, p := range strings.Split(value, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		field.Set(reflect.ValueOf(out))

	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}

	return nil
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	// Extraction
	if c.Extract.SkipLeadingPages < 0 {
		errs = append(errs, "EXTRACT_SKIP_LEADING_PAGES must be non-negative")
	}
	if c.Extract.SkipTrailingPages < 0 {
		errs = append(errs, "EXTRACT_SKIP_TRAILING_PAGES must be non-negative")
	}
	if c.Extract.RowTolerance <= 0 {
		errs = append(errs, "EXTRACT_ROW_TOLERANCE must be positive")
	}
	if c.Extract.MinRuleLength < 0 {
		errs = append(errs, "EXTRACT_MIN_RULE_LENGTH must be non-negative")
	}

	// Output
	if c.Output.Workers <= 0 {
		errs = append(errs, "OUTPUT_WORKERS must be positive")
	}
	validCompression := []string{core.CompressionNone, core.CompressionGzip}
	if !slices.Contains(validCompression, strings.ToLower(c.Output.Compression)) {
		errs = append(errs, fmt.Sprintf("OUTPUT_COMPRESSION (%q) must be one of: none, gzip", c.Output.Compression))
	}

	// Server
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.ReadTimeout < 0 {
		errs = append(errs, "SERVER_READ_TIMEOUT must be non-negative")
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}
	if c.Server.MaxUploadSize <= 0 {
		errs = append(errs, "SERVER_MAX_UPLOAD_SIZE must be positive")
	}
	if c.Server.MaxConcurrentDocuments <= 0 {
		errs = append(errs, "SERVER_MAX_CONCURRENT_DOCUMENTS must be positive")
	}
	if c.Server.SlotWait <= 0 {
		errs = append(errs, "SERVER_SLOT_WAIT must be positive")
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, "RATE_LIMIT_REQUESTS_PER_MINUTE must be non-negative")
	}

	// Database, only checked when enabled
	if c.Database.HasDatabase() {
		if c.Database.MaxConns <= 0 {
			errs = append(errs, "DB_MAX_CONNS must be positive")
		}
		if c.Database.MinConns < 0 {
			errs = append(errs, "DB_MIN_CONNS must be non-negative")
		}
		if c.Database.MaxConns < c.Database.MinConns {
			errs = append(errs, fmt.Sprintf("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)",
				c.Database.MaxConns, c.Database.MinConns))
		}
		if c.Database.RetryAttempts <= 0 {
			errs = append(errs, "DB_RETRY_ATTEMPTS must be positive")
		}
	}

	// Storage
	switch strings.ToLower(c.Storage.Backend) {
	case StorageLocal:
		if c.Output.Dir == "" {
			errs = append(errs, "OUTPUT_DIR is required for local storage")
		}
	case StorageS3:
		if c.Storage.S3Bucket == "" {
			errs = append(errs, "S3_BUCKET is required when STORAGE_BACKEND is s3")
		}
		if c.Storage.S3Region == "" {
			errs = append(errs, "S3_REGION is required when STORAGE_BACKEND is s3")
		}
		if (c.Storage.S3AccessKeyID == "") != (c.Storage.S3SecretKey == "") {
			errs = append(errs, "S3_ACCESS_KEY_ID and S3_SECRET_ACCESS_KEY must be set together")
		}
	default:
		errs = append(errs, fmt.Sprintf("STORAGE_BACKEND (%q) must be one of: local, s3", c.Storage.Backend))
	}

	// Logging
	validLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLevels, strings.ToLower(c.Logging.Level)) {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}
	validFormats := []string{"text", "json"}
	if !slices.Contains(validFormats, strings.ToLower(c.Logging.Format)) {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// String returns a safe string representation of the config for logging.
// The database URL and S3 secret are masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	fmt.Fprintf(&b, "Extract: {Skip: %d/%d, RowTolerance: %g}, ",
		c.Extract.SkipLeadingPages, c.Extract.SkipTrailingPages, c.Extract.RowTolerance)
	fmt.Fprintf(&b, "Output: {Dir: %q, BOM: %v, Compression: %q, Workers: %d}, ",
		c.Output.Dir, c.Output.BOM, c.Output.Compression, c.Output.Workers)
	fmt.Fprintf(&b, "Server: {Addr: %q, MaxUploadSize: %d, MaxConcurrentDocuments: %d}, ",
		c.Server.Addr(), c.Server.MaxUploadSize, c.Server.MaxConcurrentDocuments)
	fmt.Fprintf(&b, "Database: {URL: %s, MaxConns: %d}, ", mask(c.Database.URL), c.Database.MaxConns)
	fmt.Fprintf(&b, "Storage: {Backend: %q, Bucket: %q, Region: %q, Secret: %s}, ",
		c.Storage.Backend, c.Storage.S3Bucket, c.Storage.S3Region, mask(c.Storage.S3SecretKey))
	fmt.Fprintf(&b, "Logging: {Level: %q, Format: %q}", c.Logging.Level, c.Logging.Format)
	b.WriteString("}")
	return b.String()
}

func mask(s string) string {
	if s == "" {
		return "[UNSET]"
	}
	return "[MASKED]"
}
