// Newtcli - Network Device CLI Reconciliation Tool
//
// A CLI tool for managing network devices through their command line:
//   - Vendor profiles map structured entities to CLI sections and commands
//   - Desired state is planned as a minimal change list against the device
//   - Dry-run by default (preview commands, require -x to execute)
//   - Audit logging of all changes
//
// Entities are addressed by key, a path of kind[id] elements:
//
//	newtcli -p <platform> -d <host> <verb> <key> [attr=value...] [-x]
//
// Examples:
//
//	newtcli -p cisco_iosxe -d leaf1 show 'interface[Gi0/1]'
//	newtcli -p cisco_iosxe -d leaf1 list 'network-instance[default]' vlan
//	newtcli -p cisco_iosxe -d leaf1 apply 'interface[Gi0/1]' mtu=9000 --merge
//	newtcli -p cisco_iosxe -d leaf1 delete 'network-instance[default]/vlan[300]' -x
//	newtcli -p huawei_vrp --from running.cfg plan 'interface[GE1/0/1]' -f desired.yaml
//	newtcli range expand 1-3,7
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/user"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/newtron-network/newtcli/pkg/audit"
	"github.com/newtron-network/newtcli/pkg/cli"
	"github.com/newtron-network/newtcli/pkg/dispatch"
	"github.com/newtron-network/newtcli/pkg/handler"
	"github.com/newtron-network/newtcli/pkg/metrics"
	"github.com/newtron-network/newtcli/pkg/profile"
	"github.com/newtron-network/newtcli/pkg/settings"
	"github.com/newtron-network/newtcli/pkg/transport"
	"github.com/newtron-network/newtcli/pkg/txn"
	"github.com/newtron-network/newtcli/pkg/util"
	"github.com/newtron-network/newtcli/pkg/version"
)

var (
	// Global context flags (select the profile and device)
	platformName string // -p, --platform
	osVersion    string // --os-version
	deviceHost   string // -d, --device
	username     string // -u, --user
	devicePort   int
	driverName   string
	dumpFile     string // --from

	// Global option flags
	profileDir  string
	verbose     bool
	jsonOutput  bool
	metricsFile string
	timeout     time.Duration
	logLevel    string
	logFormat   string

	// Write flags
	executeMode bool
	verifyMode  bool

	// Global state
	userSettings *settings.Settings
	profiles     *profile.Registry
	mets         *metrics.Metrics
)

// passwordEnv holds the device password for non-interactive use.
const passwordEnv = "NEWTCLI_PASSWORD"

func main() {
	err := rootCmd.Execute()
	if mets != nil && metricsFile != "" {
		if werr := mets.WriteTextfile(metricsFile); werr != nil {
			util.Warnf("Could not write metrics: %v", werr)
		}
	}
	if logger := audit.DefaultLogger(); logger != nil {
		logger.Close()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, red("Error: ")+err.Error())
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:               "newtcli",
	Short:             "Network Device CLI Reconciliation Tool",
	SilenceUsage:      true,
	SilenceErrors:     true,
	CompletionOptions: cobra.CompletionOptions{HiddenDefaultCmd: true},
	Long: `Newtcli reads and writes network device configuration through the
device CLI, driven by vendor profiles.

Write commands preview changes by default. Use -x to execute.

  newtcli -p <platform> -d <host> <verb> <key> [attr=value...] [-x]`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if isSettingsOrHelp(cmd) {
			return nil
		}

		var err error
		userSettings, err = settings.Load()
		if err != nil {
			util.Warnf("Could not load settings: %v", err)
			userSettings = &settings.Settings{}
		}

		// Apply defaults from settings
		if platformName == "" {
			platformName = userSettings.DefaultPlatform
		}
		if profileDir == "" {
			profileDir = userSettings.GetProfileDir()
		}
		if username == "" {
			username = userSettings.Username
		}
		if driverName == "" {
			driverName = userSettings.Driver
		}
		if metricsFile == "" {
			metricsFile = userSettings.MetricsFile
		}

		if logLevel == "" {
			logLevel = userSettings.LogLevel
		}
		if logFormat == "" {
			logFormat = userSettings.LogFormat
		}
		// Quiet by default, verbose on -v
		if err := util.ConfigureLogging(util.LogOptions{Level: logLevel, Verbose: verbose, Format: logFormat}); err != nil {
			return err
		}

		if metricsFile != "" {
			mets = metrics.New()
		}

		if err := initAudit(); err != nil {
			util.Warnf("Could not initialize audit logging: %v", err)
		}
		return nil
	},
}

func init() {
	// Context flags
	rootCmd.PersistentFlags().StringVarP(&platformName, "platform", "p", "", "Device platform or profile name")
	rootCmd.PersistentFlags().StringVar(&osVersion, "os-version", "", "Device OS version (selects a versioned profile)")
	rootCmd.PersistentFlags().StringVarP(&deviceHost, "device", "d", "", "Device host name or address")
	rootCmd.PersistentFlags().StringVarP(&username, "user", "u", "", "Device login user")
	rootCmd.PersistentFlags().IntVar(&devicePort, "port", 22, "Device SSH port")
	rootCmd.PersistentFlags().StringVar(&driverName, "driver", "", "Transport driver: ssh or scrapli")
	rootCmd.PersistentFlags().StringVar(&dumpFile, "from", "", "Read device output from a saved running-config instead of a device")

	// Option flags
	rootCmd.PersistentFlags().StringVarP(&profileDir, "profiles", "P", "", "Site profile directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level on stderr (overrides -v)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format on stderr: text or json")
	rootCmd.PersistentFlags().StringVar(&metricsFile, "metrics-file", "", "Write Prometheus metrics to this textfile on exit")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", transport.DefaultTimeout, "Transport timeout")

	for _, cmd := range []*cobra.Command{applyCmd, deleteCmd} {
		addWriteFlags(cmd)
	}
	for _, cmd := range []*cobra.Command{
		showCmd, listCmd, planCmd, applyCmd, deleteCmd, parseCmd,
		rangeCmd, profilesCmd, auditCmd,
	} {
		addOutputFlags(cmd)
	}

	// ============================================================================
	// Command Groups
	// ============================================================================

	rootCmd.AddGroup(
		&cobra.Group{ID: "query", Title: "Entity Operations:"},
		&cobra.Group{ID: "mutate", Title: "Configuration Changes:"},
		&cobra.Group{ID: "offline", Title: "Offline Tools:"},
		&cobra.Group{ID: "meta", Title: "Configuration & Meta:"},
	)

	for _, cmd := range []*cobra.Command{showCmd, listCmd} {
		cmd.GroupID = "query"
		rootCmd.AddCommand(cmd)
	}
	for _, cmd := range []*cobra.Command{planCmd, applyCmd, deleteCmd} {
		cmd.GroupID = "mutate"
		rootCmd.AddCommand(cmd)
	}
	for _, cmd := range []*cobra.Command{extractCmd, parseCmd, rangeCmd} {
		cmd.GroupID = "offline"
		rootCmd.AddCommand(cmd)
	}
	for _, cmd := range []*cobra.Command{profilesCmd, auditCmd, settingsCmd, versionCmd} {
		cmd.GroupID = "meta"
		rootCmd.AddCommand(cmd)
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.String("newtcli"))
	},
}

// ============================================================================
// Setup Helpers
// ============================================================================

// initAudit installs the default audit logger: Redis when configured,
// the rotating JSON-lines file otherwise.
func initAudit() error {
	if userSettings.AuditRedis != "" {
		logger, err := audit.NewRedisLogger(audit.RedisConfig{Addr: userSettings.AuditRedis})
		if err != nil {
			return err
		}
		audit.SetDefaultLogger(logger)
		return nil
	}
	logger, err := audit.NewFileLogger(userSettings.GetAuditLog(), audit.RotationConfig{
		MaxSize:    10 * 1024 * 1024, // 10MB
		MaxBackups: 10,
	})
	if err != nil {
		return err
	}
	audit.SetDefaultLogger(logger)
	return nil
}

// loadProfiles loads the built-in and site profiles once.
func loadProfiles() (*profile.Registry, error) {
	if profiles != nil {
		return profiles, nil
	}
	reg, err := profile.NewLoader(profileDir).Load()
	if err != nil {
		return nil, fmt.Errorf("loading profiles: %w", err)
	}
	profiles = reg
	return reg, nil
}

// requireProfile selects the profile for -p and --os-version.
func requireProfile() (*profile.Profile, error) {
	if platformName == "" {
		return nil, fmt.Errorf("platform required: use -p <platform> flag or 'newtcli settings set default_platform <name>'")
	}
	reg, err := loadProfiles()
	if err != nil {
		return nil, err
	}
	return reg.Lookup(platformName, osVersion)
}

// openSession opens the saved dump given by --from, or dials -d.
func openSession(ctx context.Context) (transport.Session, string, error) {
	if dumpFile != "" {
		if executeMode {
			return nil, "", fmt.Errorf("--from is read-only: drop -x to preview against %s", dumpFile)
		}
		s, err := transport.OpenDump(dumpFile)
		if err != nil {
			return nil, "", err
		}
		return s, "file:" + dumpFile, nil
	}
	if deviceHost == "" {
		return nil, "", fmt.Errorf("device required: use -d <host> or --from <file>")
	}
	password, err := devicePassword()
	if err != nil {
		return nil, "", err
	}
	s, err := transport.Dial(ctx, transport.Config{
		Host:     deviceHost,
		Port:     devicePort,
		Username: loginUser(),
		Password: password,
		Driver:   transport.Driver(driverName),
		Platform: platformName,
		Timeout:  timeout,
	})
	if err != nil {
		return nil, "", err
	}
	return s, deviceHost, nil
}

// devicePassword reads the password from the environment or prompts on
// the terminal.
func devicePassword() (string, error) {
	if pw := os.Getenv(passwordEnv); pw != "" {
		return pw, nil
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("no terminal for password prompt: set %s", passwordEnv)
	}
	fmt.Fprintf(os.Stderr, "Password for %s@%s: ", loginUser(), deviceHost)
	pw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(pw), nil
}

func loginUser() string {
	if username != "" {
		return username
	}
	return localUser()
}

func localUser() string {
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	return os.Getenv("USER")
}

// openTxn selects the profile, registers its handlers and opens a
// transaction on the session.
func openTxn(ctx context.Context) (*txn.Transaction, error) {
	p, err := requireProfile()
	if err != nil {
		return nil, err
	}
	reg := dispatch.NewRegistry()
	if err := handler.Register(reg, p); err != nil {
		return nil, err
	}
	sess, device, err := openSession(ctx)
	if err != nil {
		return nil, err
	}
	return txn.New(sess, reg, p, txn.Options{
		Device:  device,
		User:    localUser(),
		Execute: executeMode,
		Verify:  verifyMode,
		Metrics: mets,
	}), nil
}

// withTxn runs fn in a transaction and closes it afterwards.
func withTxn(fn func(ctx context.Context, t *txn.Transaction) error) error {
	ctx := context.Background()
	t, err := openTxn(ctx)
	if err != nil {
		return err
	}
	defer t.Close()
	return fn(ctx, t)
}

// ============================================================================
// Output Helpers
// ============================================================================

// printDryRunNotice tells the user nothing was sent.
func printDryRunNotice() {
	if !executeMode {
		fmt.Println("\n" + yellow("DRY-RUN: No changes applied. Use -x to execute."))
	}
}

// printTransportError reports what reached the device before a failure.
func printTransportError(err error) {
	var te *txn.TransportError
	if !errors.As(err, &te) {
		return
	}
	fmt.Println(red("Transport failed while applying " + te.Key.String()))
	for _, r := range te.Applied {
		fmt.Printf("  %s %s\n", green("applied"), r.Key)
	}
	if len(te.Changes) > 0 {
		fmt.Println("Pending changes:")
		cli.PrintChanges(os.Stdout, te.Changes, te.Commands)
	}
}

// isSettingsOrHelp checks whether cmd (or any ancestor) is a settings, help, or version command.
func isSettingsOrHelp(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		switch c.Name() {
		case "help", "version", "settings":
			return true
		}
	}
	return false
}

// addWriteFlags registers -x/--execute and --verify as local flags.
func addWriteFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVarP(&executeMode, "execute", "x", false, "Execute changes (default is dry-run)")
	cmd.Flags().BoolVar(&verifyMode, "verify", false, "Re-read entities after execution and report drift")
}

// addOutputFlags registers --json as a local flag.
func addOutputFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	if cmd.HasSubCommands() {
		flags = cmd.PersistentFlags()
	}
	flags.BoolVar(&jsonOutput, "json", false, "JSON output")
}

// Color helpers delegate to pkg/cli
func green(s string) string  { return cli.Green(s) }
func yellow(s string) string { return cli.Yellow(s) }
func red(s string) string    { return cli.Red(s) }
func bold(s string) string   { return cli.Bold(s) }
func dim(s string) string    { return cli.Dim(s) }
