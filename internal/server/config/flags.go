package config

import (
	"flag"
	"os"
	"strings"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP host
//	-p int      HTTP port
//	-g string   gRPC health bind address (e.g., ":50051")
//	-D string   database driver (pgx | sqlite)
//	-d string   database DSN
//	-t string   auth type (basic_auth | session_auth)
//	-s string   cookie signing secret key
//	-H string   password hasher (bcrypt | argon2id)
//	-o string   comma-separated CORS origins
//	-w int      shutdown timeout, seconds
//	-l string   log level
func parseFlags(config *Config) error {
	// Filter args to include only the flags handled here.
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-p", "-g", "-D", "-d", "-t", "-s", "-H", "-o", "-w", "-l"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.APIHost, "a", config.APIHost, "HTTP host")
	fs.IntVar(&config.APIPort, "p", config.APIPort, "HTTP port")
	fs.StringVar(&config.GRPCHealthAddr, "g", config.GRPCHealthAddr, "gRPC health address")
	fs.StringVar(&config.DatabaseDriver, "D", config.DatabaseDriver, "database driver")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.AuthType, "t", config.AuthType, "auth type")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.StringVar(&config.PasswordHasher, "H", config.PasswordHasher, "password hasher")
	origins := fs.String("o", strings.Join(config.CORSAllowedOrigins, ","), "CORS allowed origins")
	shutdown := fs.Int("w", int(config.ShutdownTimeout.Seconds()), "shutdown timeout (in seconds)")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		return err
	}

	// only flags actually given override the derived fields
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "o":
			config.CORSAllowedOrigins = strings.Split(*origins, ",")
		case "w":
			config.ShutdownTimeout = time.Duration(*shutdown) * time.Second
		}
	})
	return nil
}
