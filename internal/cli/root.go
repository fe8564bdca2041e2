// Package cli implements the jailprov command line interface.
package cli

import (
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/spf13/cobra"

	"jailprov/internal/jailprov/hostinfo"
	"jailprov/internal/jailprov/identity"
	"jailprov/internal/jailprov/iocage"
	"jailprov/internal/jailprov/process"
	"jailprov/internal/jailprov/provision"
	"jailprov/pkg/config"
	"jailprov/pkg/logger"
)

// rootOptions holds the flag values for the root command.
type rootOptions struct {
	gateway    string
	release    string
	username   string
	ssh        bool
	thickJail  bool
	verbosity  int
	configPath string
}

// NewRootCmd creates the root command for provisioning a jail.
// The jail name and its IP address/subnet mask are positional arguments;
// everything else has a flag with a computed or configured default.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "jailprov <NAME> <IP/MASK>",
		Short: "Creates an iocage based FreeBSD jail",
		Long: `Creates an iocage based FreeBSD jail.

This program uses iocage to create a VNET networked ZFS-backed FreeBSD jail.
Suitable defaults are computed for the default gateway and base release to
reduce the number of arguments in the common case. An optional --ssh flag
will install and start an SSH service when the jail boots for remote
management. Finally, an optional --user option will create a user in the new
jail by copying values from the outside/host system.

Examples:
  # Provision a new jail with a name and address
  jailprov ferris 192.168.0.100/24

  # Provision a new jail with a user and SSH service
  jailprov --user jdoe --ssh homebase 10.0.0.25/24

  # Use a custom default gateway and base release
  jailprov --gateway 10.1.0.254 --release 11.1-RELEASE bespoke 10.1.0.1/24`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProvision(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.gateway, "gateway", "g", "",
		"IP address of the default gateway route for the VNET (default: host default route)")
	cmd.Flags().StringVarP(&opts.release, "release", "R", "",
		"FreeBSD release to use for the jail instance (default: host release)")
	cmd.Flags().StringVarP(&opts.username, "user", "u", "",
		"User to create in the jail instance, copied from the host system")
	cmd.Flags().BoolVarP(&opts.ssh, "ssh", "s", false,
		"Installs and sets up an SSH service")
	cmd.Flags().BoolVarP(&opts.thickJail, "thick-jail", "T", false,
		"Creates a thick jail (full file system copy) rather than a thin one")
	cmd.Flags().CountVarP(&opts.verbosity, "verbose", "v",
		"Sets the verbosity mode; multiple -v options increase verbosity")
	cmd.Flags().StringVar(&opts.configPath, "config", "",
		"Path to configuration file (searches common locations if not specified)")

	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command with the process arguments.
func Execute() error {
	return NewRootCmd().Execute()
}

// runProvision assembles a provisioning request from flags, configuration,
// and host defaults, then runs the workflow.
func runProvision(cmd *cobra.Command, args []string, opts *rootOptions) error {
	cfg, source, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return err
	}

	log, err := buildLogger(cmd, cfg, opts.verbosity)
	if err != nil {
		return err
	}
	log.Debug("configuration loaded", "source", source, "verbosity", opts.verbosity)

	name := args[0]
	addr := args[1]
	if name == "" {
		return errors.New("jail name must not be empty")
	}
	if _, _, err := net.ParseCIDR(addr); err != nil {
		return fmt.Errorf("invalid ip/mask %q: address and subnet mask are both required", addr)
	}

	if err := provision.EnsureRoot(); err != nil {
		return err
	}

	gateway := firstNonEmpty(opts.gateway, cfg.Defaults.Gateway)
	if gateway == "" {
		gateway, err = hostinfo.DefaultGateway(cmd.Context())
		if err != nil {
			return fmt.Errorf("could not determine default gateway: %w", err)
		}
	}
	if net.ParseIP(gateway) == nil {
		return fmt.Errorf("invalid gateway address %q", gateway)
	}

	release := firstNonEmpty(opts.release, cfg.Defaults.Release)
	if release == "" {
		release, err = hostinfo.DefaultRelease()
		if err != nil {
			return fmt.Errorf("could not determine default release: %w", err)
		}
	}

	req := provision.Request{
		Jail: iocage.JailSpec{
			Name:    name,
			Addr:    addr,
			Gateway: gateway,
			Release: release,
			Thick:   opts.thickJail || cfg.Defaults.Thick,
		},
		Username: opts.username,
		SSH:      opts.ssh || cfg.Defaults.SSH,
	}
	log.Debug("provisioning request assembled",
		"name", name, "addr", addr, "gateway", gateway, "release", release,
		"user", req.Username, "ssh", req.SSH, "thick", req.Jail.Thick)

	prov := provision.New(
		process.NewRunner(),
		identity.NewResolver(),
		iocage.NewBuilder(cfg.Iocage.Path),
		log,
	)

	section(cmd.OutOrStdout(), log, fmt.Sprintf("Provisioning a jail named '%s'", name))
	if err := prov.Provision(cmd.Context(), req, buildSink(cmd, log)); err != nil {
		return err
	}
	section(cmd.OutOrStdout(), log, fmt.Sprintf("Instance '%s' provisioned successfully", name))

	return nil
}

// buildLogger derives the run logger. Any -v switches to full structured
// output on stderr; otherwise the configured level applies and progress is
// rendered in the compact console format on stdout.
func buildLogger(cmd *cobra.Command, cfg *config.Config, verbosity int) (*logger.Logger, error) {
	if verbosity > 0 {
		return logger.NewWithConfig(logger.Config{
			Level:  logger.DEBUG,
			Output: cmd.ErrOrStderr(),
			Format: logger.FormatText,
		}), nil
	}

	level, err := logger.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	return logger.NewWithConfig(logger.Config{
		Level:  level,
		Output: cmd.OutOrStdout(),
		Format: logger.FormatConsole,
	}), nil
}

// buildSink picks how child process output reaches the user: tagged log
// records in verbose mode, indented console lines otherwise.
func buildSink(cmd *cobra.Command, log *logger.Logger) process.Sink {
	if log.IsDebugEnabled() {
		return newLoggerSink(log)
	}
	return newConsoleSink(cmd.OutOrStdout(), cmd.ErrOrStderr())
}

// section prints a top-level progress banner. In verbose mode the banner
// goes through the structured logger instead.
func section(w io.Writer, log *logger.Logger, msg string) {
	if log.IsDebugEnabled() {
		log.Info(msg)
		return
	}
	_, _ = fmt.Fprintf(w, "--- %s\n", msg)
}

// PrintErrorChain writes err and each wrapped cause on its own line, the
// way a user reads a failed run: the step that failed first, then why.
func PrintErrorChain(w io.Writer, err error) {
	_, _ = fmt.Fprintf(w, "Error: %v\n", err)
	for cause := errors.Unwrap(err); cause != nil; cause = errors.Unwrap(cause) {
		_, _ = fmt.Fprintf(w, "Caused by: %v\n", cause)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
