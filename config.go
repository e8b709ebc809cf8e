package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config is the configuration struct for the service.
type Config struct {
	// Accounts represents the brokerage accounts to sync positions for.
	Accounts []string
	// LiveToken is the brokerage live API token used for market data.
	LiveToken string
	// SandboxToken is the brokerage sandbox API token used for account data.
	SandboxToken string
	// DBEndpoint represents the row store connection endpoint.
	DBEndpoint string
	// DBUser is the row store user.
	DBUser string
	// DBPass is the row store user pass.
	DBPass string
	// PositionsIntervalSecs is the poll interval for position syncs in seconds.
	PositionsIntervalSecs int
	// QuotesIntervalSecs is the poll interval for quote refreshes in seconds.
	QuotesIntervalSecs int
	// SpotIntervalSecs is the poll interval for spot price updates in seconds.
	SpotIntervalSecs int
	// IndicatorsIntervalSecs is the poll interval for indicator cycles in seconds.
	IndicatorsIntervalSecs int
	// TradesIntervalSecs is the poll interval for trade imports in seconds.
	TradesIntervalSecs int

	registeredFlags map[string]bool
}

// Validate asserts the config sane inputs.
func (cfg *Config) Validate() error {
	var errs error

	if len(cfg.Accounts) == 0 {
		errs = errors.Join(errs, fmt.Errorf("no accounts provided for spotwatch service"))
	}
	if cfg.LiveToken == "" {
		errs = errors.Join(errs, fmt.Errorf("live api token cannot be an empty string"))
	}
	if cfg.SandboxToken == "" {
		errs = errors.Join(errs, fmt.Errorf("sandbox api token cannot be an empty string"))
	}
	if cfg.DBEndpoint == "" {
		errs = errors.Join(errs, fmt.Errorf("database endpoint cannot be an empty string"))
	}

	return errs
}

// registerFlag registers command line arguments of any type and tracks them to avoid reregistration.
func (cfg *Config) registerFlag(name string, value interface{}, usage string) error {
	if cfg.registeredFlags == nil {
		cfg.registeredFlags = make(map[string]bool)
	}

	if cfg.registeredFlags[name] {
		return nil
	}

	cfg.registeredFlags[name] = true

	defValue := os.Getenv(name)
	val := reflect.ValueOf(value)
	if val.Kind() != reflect.Ptr || val.IsNil() {
		return fmt.Errorf("%s: value must be a non-nil pointer", name)
	}

	switch val.Elem().Kind() {
	case reflect.String:
		flag.StringVar(value.(*string), name, defValue, usage)
	case reflect.Bool:
		var def bool
		if defValue != "" {
			def, _ = strconv.ParseBool(defValue)
		}
		flag.BoolVar(value.(*bool), name, def, usage)
	case reflect.Int:
		var def int
		if defValue != "" {
			def, _ = strconv.Atoi(defValue)
		}
		flag.IntVar(value.(*int), name, def, usage)
	case reflect.Slice:
		// Only handle []string
		if val.Elem().Type().Elem().Kind() == reflect.String {
			var def []string
			if defValue != "" {
				def = strings.Split(defValue, ",")
			}
			flag.Func(name, usage, func(s string) error {
				*value.(*[]string) = strings.Split(s, ",")
				return nil
			})
			// Set default if not provided via flag
			if len(def) > 0 {
				*value.(*[]string) = def
			}
		} else {
			return fmt.Errorf("%s: unsupported slice type", name)
		}
	default:
		return fmt.Errorf("%s: unsupported type", name)
	}

	return nil
}

// loadConfig loads the configuration from environment variables and command line flags.
func loadConfig(cfg *Config, path string) error {
	if path == "" {
		path = ".env"
	}

	// Check if the expected .env file exists before loading it.
	_, err := os.Stat(path)
	if err == nil {
		err := godotenv.Load(path)
		if err != nil {
			return fmt.Errorf("loading .env file: %w", err)
		}
	}

	// Register command line arguments using loaded environment variables as defaults.
	err = cfg.registerFlag("accounts", &cfg.Accounts, "the brokerage accounts to sync")
	if err != nil {
		return err
	}
	err = cfg.registerFlag("livetoken", &cfg.LiveToken, "the brokerage live api token")
	if err != nil {
		return err
	}
	err = cfg.registerFlag("sandboxtoken", &cfg.SandboxToken, "the brokerage sandbox api token")
	if err != nil {
		return err
	}
	err = cfg.registerFlag("dbendpoint", &cfg.DBEndpoint, "the row store endpoint")
	if err != nil {
		return err
	}
	err = cfg.registerFlag("dbuser", &cfg.DBUser, "the row store user")
	if err != nil {
		return err
	}
	err = cfg.registerFlag("dbpass", &cfg.DBPass, "the row store user pass")
	if err != nil {
		return err
	}
	err = cfg.registerFlag("positionsinterval", &cfg.PositionsIntervalSecs, "the position sync interval in seconds")
	if err != nil {
		return err
	}
	err = cfg.registerFlag("quotesinterval", &cfg.QuotesIntervalSecs, "the quote refresh interval in seconds")
	if err != nil {
		return err
	}
	err = cfg.registerFlag("spotinterval", &cfg.SpotIntervalSecs, "the spot price update interval in seconds")
	if err != nil {
		return err
	}
	err = cfg.registerFlag("indicatorsinterval", &cfg.IndicatorsIntervalSecs, "the indicator cycle interval in seconds")
	if err != nil {
		return err
	}
	err = cfg.registerFlag("tradesinterval", &cfg.TradesIntervalSecs, "the trade import interval in seconds")
	if err != nil {
		return err
	}

	// Parse command-line flags.
	flag.Parse()

	return cfg.Validate()
}
