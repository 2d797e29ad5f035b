package config

import (
	"flag"
	"os"
	"time"

	"github.com/avdeev/usersvc/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-d string   PostgreSQL DSN
//	-s string   JWT HMAC secret key
//	-t int      token validity, hours
//	-w int      bcrypt cost (work factor)
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with other components. The token
// validity flag is accepted as an integer in hours and converted to a
// time.Duration; the conversion applies only when -t was actually passed,
// so sub-hour values from the JSON or env overlays survive.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-s", "-t", "-w"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddr, "a", config.EndpointAddr, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	tokenValidityHours := fs.Int("t", int(config.TokenValidityDuration.Hours()), "token validity duration (in hours)")
	fs.IntVar(&config.BcryptCost, "w", config.BcryptCost, "bcrypt cost")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	fs.Visit(func(f *flag.Flag) {
		if f.Name == "t" {
			config.TokenValidityDuration = time.Duration(*tokenValidityHours) * time.Hour
		}
	})
}
