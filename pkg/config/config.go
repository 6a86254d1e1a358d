// Package config loads nexod's environment configuration and turns a
// failed `validate:"..."` tag into a message that names each offending
// struct field (its Go field name, not the env variable) and the tag
// it failed, instead of a generic validator dump.
//
// Usage:
//
//	import "github.com/emanuel-epifani/nexo/pkg/config"
//
//	type Config struct {
//		TCPAddr string `env:"NEXO_TCP_ADDR" env-default:":7654"`
//	}
//
//	var cfg Config
//	if err := config.Load(&cfg); err != nil {
//		log.Fatal(err)
//	}
package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/ilyakaznacheev/cleanenv"

	"github.com/emanuel-epifani/nexo/pkg/errors"
)

// EnvFile is the dotenv file consulted before falling back to the
// process environment. nexod ships without one in production; its
// absence is not an error.
const EnvFile = ".env"

// Load populates cfg from EnvFile if present, otherwise from the
// process environment, then validates it. A validation failure is
// returned as a single errors.InvalidArgument naming every offending
// field so main can print it and exit without a second round of
// operator guesswork.
func Load[T any](cfg *T) error {
	if err := cleanenv.ReadConfig(EnvFile, cfg); err != nil {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return errors.Wrap(err, "failed to read environment configuration")
		}
	}

	if err := validator.New().Struct(cfg); err != nil {
		return errors.InvalidArgument(describeValidationErrors(err), err)
	}

	return nil
}

// describeValidationErrors turns validator.ValidationErrors into
// "FIELD: failed 'TAG'" lines, FIELD being the Go struct field name,
// so a rejected value doesn't read as an opaque struct dump.
func describeValidationErrors(err error) string {
	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok || len(fieldErrs) == 0 {
		return "config validation failed: " + err.Error()
	}
	lines := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		lines = append(lines, fmt.Sprintf("%s: failed %q", fe.Field(), fe.Tag()))
	}
	return "config validation failed: " + strings.Join(lines, "; ")
}
