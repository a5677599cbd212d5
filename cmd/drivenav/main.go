package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/drivenav/internal/analysis"
	"github.com/san-kum/drivenav/internal/config"
	"github.com/san-kum/drivenav/internal/export"
	"github.com/san-kum/drivenav/internal/monitoring"
	"github.com/san-kum/drivenav/internal/optim"
	"github.com/san-kum/drivenav/internal/path"
	"github.com/san-kum/drivenav/internal/paths"
	"github.com/san-kum/drivenav/internal/sim"
	"github.com/san-kum/drivenav/internal/storage"
	"github.com/san-kum/drivenav/internal/telemetry"
	"github.com/san-kum/drivenav/internal/timeutil"
	"github.com/san-kum/drivenav/internal/viz"
)

var (
	dataDir    string
	configFile string
	preset     string
	dt         float64
	duration   float64
	integrator string
	substeps   int
	lag        float64
	offsetX    float64
	offsetY    float64
	offsetDeg  float64
	// Telemetry CSV of follower snapshots, empty to skip.
	telemetryFile string
	svgFile       string
	theme         string
	logFile       string
	tuneParams    []string
	tuneMetric    string
	tuneTop       int
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "drivenav",
		Short:        "differential drive path following lab",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".drivenav", "data directory")
	rootCmd.PersistentFlags().StringVar(&logFile, "log", "", "write diagnostics to this file instead of stderr")

	runCmd := &cobra.Command{
		Use:   "run [path]",
		Short: "drive a path in simulation and store the run",
		Args:  cobra.ExactArgs(1),
		RunE:  runPath,
	}
	addSimFlags(runCmd)
	runCmd.Flags().StringVar(&telemetryFile, "telemetry", "", "write follower telemetry CSV to this file")

	liveCmd := &cobra.Command{
		Use:   "live [path]",
		Short: "drive a path in real time with a live field view",
		Args:  cobra.ExactArgs(1),
		RunE:  runLive,
	}
	addSimFlags(liveCmd)
	liveCmd.Flags().StringVar(&theme, "theme", viz.ThemeField.Name, "colour theme")

	sweepCmd := &cobra.Command{
		Use:   "sweep [path...]",
		Short: "drive several paths concurrently and compare them",
		RunE:  runSweep,
	}
	addSimFlags(sweepCmd)

	tuneCmd := &cobra.Command{
		Use:   "tune [path...]",
		Short: "grid search follower settings over simulated runs",
		RunE:  runTune,
	}
	addSimFlags(tuneCmd)
	tuneCmd.Flags().StringArrayVar(&tuneParams, "param", nil, "grid axis as name=v1,v2,... (repeatable)")
	tuneCmd.Flags().StringVar(&tuneMetric, "metric", optim.DefaultMetric, "metric to minimise")
	tuneCmd.Flags().IntVar(&tuneTop, "top", 5, "number of trials to print")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot a run's tracking errors",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export a run to JSON on stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return storage.New(dataDir).ExportRun(os.Stdout, args[0])
		},
	}

	analyzeCmd := &cobra.Command{
		Use:   "analyze [run_id]",
		Short: "frequency analysis of a run's steering",
		Args:  cobra.ExactArgs(1),
		RunE:  analyzeRun,
	}

	svgCmd := &cobra.Command{
		Use:   "svg [run_id]",
		Short: "draw a run's path and trajectory as SVG",
		Args:  cobra.ExactArgs(1),
		RunE:  exportSVG,
	}
	svgCmd.Flags().StringVarP(&svgFile, "out", "o", "", "output file (default <run_id>.svg)")

	pathsCmd := &cobra.Command{
		Use:   "paths",
		Short: "list the built-in paths",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tREVERSED\tDESCRIPTION")
			for _, name := range paths.Names() {
				c, err := paths.Lookup(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%s\t%v\t%s\n", c.Name, c.Reversed, c.Description)
			}
			return w.Flush()
		},
	}

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list the configuration presets",
		Run: func(cmd *cobra.Command, args []string) {
			for _, p := range config.ListPresets() {
				fmt.Printf("  %s\n", p)
			}
		},
	}

	configCmd := &cobra.Command{
		Use:   "config [file]",
		Short: "write the effective configuration as yaml",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return config.Save(args[0], cfg)
		},
	}
	configCmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	configCmd.Flags().StringVar(&preset, "preset", "", "start from a preset")

	rootCmd.AddCommand(runCmd, liveCmd, sweepCmd, tuneCmd, listCmd, plotCmd, analyzeCmd, exportJSONCmd, svgCmd, pathsCmd, presetsCmd, configCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func addSimFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	cmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
	cmd.Flags().Float64Var(&dt, "dt", 0.02, "control period in seconds")
	cmd.Flags().Float64Var(&duration, "time", 15.0, "time limit in seconds")
	cmd.Flags().StringVar(&integrator, "integrator", config.ArcIntegrator, "plant integrator (arc, euler, rk4, rk45)")
	cmd.Flags().IntVar(&substeps, "substeps", 4, "plant steps per control period")
	cmd.Flags().Float64Var(&lag, "lag", 0, "wheel velocity lag in seconds")
	cmd.Flags().Float64Var(&offsetX, "offset-x", 0, "true start offset forward, inches")
	cmd.Flags().Float64Var(&offsetY, "offset-y", 0, "true start offset left, inches")
	cmd.Flags().Float64Var(&offsetDeg, "offset-deg", 0, "true start heading offset, degrees")
}

// loadConfig starts from the preset, or the config file when one is given,
// then applies the flags that were set explicitly.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if preset != "" {
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
	}
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("dt") {
		cfg.Loop.Period = dt
	}
	if flags.Changed("time") {
		cfg.Sim.Duration = duration
	}
	if flags.Changed("integrator") {
		cfg.Sim.Integrator = integrator
	}
	if flags.Changed("substeps") {
		cfg.Sim.Substeps = substeps
	}
	if flags.Changed("lag") {
		cfg.Robot.VelocityLag = lag
	}
	if flags.Changed("offset-x") {
		cfg.Sim.StartOffsetX = offsetX
	}
	if flags.Changed("offset-y") {
		cfg.Sim.StartOffsetY = offsetY
	}
	if flags.Changed("offset-deg") {
		cfg.Sim.StartOffsetDeg = offsetDeg
	}
	return cfg, cfg.Validate()
}

// setupLogging routes diagnostics through an async logger so the control
// loop never waits on the terminal or disk. The returned func flushes it.
func setupLogging() (func(), error) {
	out := os.Stderr
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, err
		}
		out = f
	}
	logger := log.New(out, "", log.LstdFlags|log.Lmicroseconds)
	async := monitoring.NewAsync(logger.Printf, 1024)
	monitoring.SetLogger(async.Logf)
	return func() {
		monitoring.SetLogger(logger.Printf)
		async.Close()
		if n := async.Dropped(); n > 0 {
			logger.Printf("[WARN] dropped %d log lines", n)
		}
		if out != os.Stderr {
			out.Close()
		}
	}, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func runPath(cmd *cobra.Command, args []string) error {
	c, err := paths.Lookup(args[0])
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	runner, err := cfg.Runner()
	if err != nil {
		return err
	}

	closeLog, err := setupLogging()
	if err != nil {
		return err
	}
	defer closeLog()

	if telemetryFile != "" {
		sink, err := telemetry.Create(telemetryFile, 0)
		if err != nil {
			return err
		}
		defer func() {
			if err := sink.Close(); err != nil {
				monitoring.Errorf("telemetry: %v", err)
			}
			if n := sink.Dropped(); n > 0 {
				monitoring.Warnf("telemetry: dropped %d rows", n)
			}
		}()
		runner.Sink = sink
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	fmt.Printf("driving %s...\n", c.Name)
	start := time.Now()
	result, err := runner.Run(ctx, c)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	runID, err := st.Save(storage.RunMetadata{
		Preset:     preset,
		Dt:         cfg.Loop.Period,
		Duration:   cfg.Sim.Duration,
		Integrator: cfg.Sim.Integrator,
	}, result)
	if err != nil {
		return err
	}

	fmt.Printf("completed in %v\n", elapsed)
	fmt.Printf("run id: %s\n", runID)
	fmt.Printf("steps: %d\n", result.StepsTaken)
	if result.Finished {
		fmt.Printf("finished at %.2fs\n", result.FinishTime)
	} else {
		fmt.Println("did not finish within the time limit")
	}
	printMetrics(result.Metrics)
	return nil
}

func printMetrics(m map[string]float64) {
	fmt.Println("\nmetrics:")
	for _, name := range sortedKeys(m) {
		fmt.Printf("  %s: %.4f\n", name, m[name])
	}
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func runLive(cmd *cobra.Command, args []string) error {
	c, err := paths.Lookup(args[0])
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	runner, err := cfg.Runner()
	if err != nil {
		return err
	}
	p, err := c.Build(cfg.Path.MaxDecel)
	if err != nil {
		return err
	}

	// the terminal belongs to the view
	if logFile == "" {
		logFile = filepath.Join(dataDir, "live.log")
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return err
		}
	}
	closeLog, err := setupLogging()
	if err != nil {
		return err
	}
	defer closeLog()

	feed := viz.NewFeed(0)
	runner.AddObserver(feed)

	ctx, cancel := signalContext()
	defer cancel()

	var result *sim.Result
	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		var runErr error
		result, runErr = runner.RunRealtime(ctx, c, timeutil.RealClock{})
		feed.Finish(runErr)
	}()

	m := viz.NewModel(c.Name, p, c.StartPose, feed).WithTheme(viz.GetTheme(theme))
	final, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	cancel()
	<-runDone
	if err != nil {
		return err
	}

	if fm, ok := final.(viz.Model); ok && fm.Done() {
		if fm.Err() != nil {
			return fm.Err()
		}
		if result != nil {
			printMetrics(result.Metrics)
		}
	}
	return nil
}

func runSweep(cmd *cobra.Command, args []string) error {
	containers, err := lookupAll(args)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	runner, err := cfg.Runner()
	if err != nil {
		return err
	}

	closeLog, err := setupLogging()
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, cancel := signalContext()
	defer cancel()

	results, runErr := sim.NewEnsemble(runner).Run(ctx, containers)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PATH\tFINISHED\tTIME\tCTE_RMS\tCTE_MAX\tATE_FINAL\tON_TRACK")
	for i, res := range results {
		if res == nil {
			fmt.Fprintf(w, "%s\tfailed\t\t\t\t\t\n", containers[i].Name)
			continue
		}
		m := res.Metrics
		fmt.Fprintf(w, "%s\t%v\t%.2fs\t%.3f\t%.3f\t%.3f\t%.2f\n",
			containers[i].Name, res.Finished, res.FinishTime,
			m["cte_rms"], m["cte_max"], m["ate_final"], m["on_track"])
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return runErr
}

func lookupAll(names []string) ([]paths.Container, error) {
	if len(names) == 0 {
		names = paths.Names()
	}
	containers := make([]paths.Container, len(names))
	for i, name := range names {
		c, err := paths.Lookup(name)
		if err != nil {
			return nil, err
		}
		containers[i] = c
	}
	return containers, nil
}

// parseParam reads a grid axis written as name=v1,v2,...
func parseParam(s string) (optim.Param, error) {
	name, list, ok := strings.Cut(s, "=")
	if !ok {
		return optim.Param{}, fmt.Errorf("bad --param %q: want name=v1,v2", s)
	}
	p := optim.Param{Name: strings.TrimSpace(name)}
	for _, field := range strings.Split(list, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			return optim.Param{}, fmt.Errorf("bad --param %q: %w", s, err)
		}
		p.Values = append(p.Values, v)
	}
	return p, nil
}

func runTune(cmd *cobra.Command, args []string) error {
	containers, err := lookupAll(args)
	if err != nil {
		return err
	}
	if len(tuneParams) == 0 {
		return fmt.Errorf("at least one --param is required (known: %v)", optim.ParamNames())
	}
	params := make([]optim.Param, len(tuneParams))
	for i, s := range tuneParams {
		if params[i], err = parseParam(s); err != nil {
			return err
		}
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	search, err := optim.NewGridSearch(params)
	if err != nil {
		return err
	}
	search.Metric = tuneMetric

	// per-run chatter would bury the table
	monitoring.SetLogger(nil)

	ctx, cancel := signalContext()
	defer cancel()

	fmt.Printf("evaluating %d combinations on %d paths...\n", search.Size(), len(containers))
	trials, err := search.Search(ctx, cfg, containers)
	if err != nil && len(trials) == 0 {
		return err
	}

	names := make([]string, len(params))
	for i, p := range params {
		names[i] = p.Name
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\t"+strings.Join(names, "\t")+"\t"+strings.ToUpper(search.Metric))
	for i, tr := range trials {
		if i >= tuneTop {
			break
		}
		row := make([]string, len(names))
		for j, name := range names {
			row[j] = strconv.FormatFloat(tr.Params[name], 'g', -1, 64)
		}
		score := fmt.Sprintf("%.4f", tr.Score)
		if tr.Err != nil {
			score = "error: " + tr.Err.Error()
		}
		fmt.Fprintf(w, "%d\t%s\t%s\n", i+1, strings.Join(row, "\t"), score)
	}
	if ferr := w.Flush(); ferr != nil {
		return ferr
	}
	return err
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPATH\tTIME\tPRESET\tINTEG\tFINISHED\tCTE_RMS")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%v\t%.3f\n",
			run.ID,
			run.Path,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Preset,
			run.Integrator,
			run.Finished,
			run.Metrics["cte_rms"],
		)
	}

	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	tr, err := st.LoadTrajectory(runID)
	if err != nil {
		return err
	}
	if len(tr.Times) == 0 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("path: %s\n", meta.Path)
	fmt.Printf("samples: %d\n\n", len(tr.Times))

	left := make([]float64, len(tr.Commands))
	right := make([]float64, len(tr.Commands))
	for i, c := range tr.Commands {
		left[i], right[i] = c.Left, c.Right
	}

	plots := []struct {
		caption string
		data    [][]float64
	}{
		{"cross-track error (in)", [][]float64{tr.CrossTrack}},
		{"along-track error (in)", [][]float64{tr.AlongTrack}},
		{"wheel commands (in/s), left and right", [][]float64{left, right}},
	}
	for _, p := range plots {
		graph := asciigraph.PlotMany(p.data,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(p.caption),
		)
		fmt.Println(graph)
		fmt.Println()
	}
	return nil
}

// rebuildPath rebuilds the path a run drove, using its preset's decel limit.
func rebuildPath(meta *storage.RunMetadata) (*path.Path, error) {
	c, err := paths.Lookup(meta.Path)
	if err != nil {
		return nil, err
	}
	cfg := config.DefaultConfig()
	if p := config.GetPreset(meta.Preset); p != nil {
		cfg = p
	}
	return c.Build(cfg.Path.MaxDecel)
}

func analyzeRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	tr, err := st.LoadTrajectory(runID)
	if err != nil {
		return err
	}
	p, err := rebuildPath(meta)
	if err != nil {
		return err
	}

	cte := analysis.SignedCrossTrack(p, tr.Poses)
	fmt.Printf("run: %s (%s, %d samples)\n", meta.ID, meta.Path, len(cte))
	fmt.Printf("zero crossings: %d\n", analysis.ZeroCrossings(cte, 0.1))

	osc, ok := analysis.DominantOscillation(cte, meta.Dt)
	if !ok {
		fmt.Println("no oscillation to report")
		return nil
	}
	fmt.Printf("dominant oscillation: %.2f Hz, %.3f in amplitude, %.0f%% of the energy\n\n",
		osc.Frequency, osc.Amplitude, osc.Share*100)

	spectrum := analysis.PowerSpectrum(cte, meta.Dt)
	fmt.Println(asciigraph.Plot(spectrum.Amplitude[1:],
		asciigraph.Height(10),
		asciigraph.Width(80),
		asciigraph.Caption(fmt.Sprintf("signed cross-track amplitude, 0 to %.0f Hz", spectrum.Freqs[len(spectrum.Freqs)-1])),
	))
	return nil
}

func exportSVG(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	tr, err := st.LoadTrajectory(runID)
	if err != nil {
		return err
	}

	p, err := rebuildPath(meta)
	if err != nil {
		return err
	}

	out := svgFile
	if out == "" {
		out = runID + ".svg"
	}
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	if err := export.RunToSVG(f, p, tr, export.DefaultOptions()); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", out)
	return nil
}
