package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"circinspect/internal/command"
	"circinspect/internal/debugger"
	"circinspect/internal/engine"
	clog "circinspect/internal/log"
	"circinspect/internal/tui"
)

func newDrawCommand(a *app) *cobra.Command {
	var tokenOut string
	cmd := &cobra.Command{
		Use:   "draw FILE",
		Short: "Run a program and draw its circuit",
		Long: `Run the program in FILE, build its command model and print the whole
circuit, its output, the subroutines it calls and the result of each
transform stage. The session token needed by 'step' and 'expand' is
included in --json output or written with --token-out.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := readProgram(args[0])
			if err != nil {
				return err
			}
			v, err := a.engine.Visualize(cmd.Context(), src)
			if err != nil {
				return err
			}
			if tokenOut != "" {
				if err := os.WriteFile(tokenOut, []byte(v.Token+"\n"), 0o600); err != nil {
					return fmt.Errorf("failed to write token: %w", err)
				}
			}
			if a.json {
				return a.printJSON(v)
			}
			printVisualization(cmd, v)
			return nil
		},
	}
	cmd.Flags().StringVar(&tokenOut, "token-out", "", "Write the session token to this file")
	return cmd
}

func printVisualization(cmd *cobra.Command, v *engine.Visualization) {
	cmd.Printf("%s (line %d)\n\n", v.Name, v.Line)
	cmd.Println(v.Diagram)
	cmd.Printf("\noutput: %s\n", v.Output)
	if v.Stdout != "" {
		cmd.Printf("stdout:\n%s\n", indent(v.Stdout, "  "))
	}
	printChildren(cmd, v.Children)
	if len(v.Transforms) > 0 {
		cmd.Println("\ntransforms:")
		for _, r := range v.Transforms {
			cmd.Printf("  %s (line %d): %s\n", r.Text, r.Line, r.Output)
			cmd.Println(indent(r.Diagram, "    "))
		}
	}
}

func printChildren(cmd *cobra.Command, children []command.Child) {
	if len(children) == 0 {
		return
	}
	cmd.Println("\nsubroutines:")
	for _, c := range children {
		mark := ""
		if c.HasChildren {
			mark = " +"
		}
		cmd.Printf("  %s [id %d, line %d]%s\n", c.Name, c.ID, c.Line, mark)
		cmd.Println(indent(c.Diagram, "    "))
	}
}

func newStepCommand(a *app) *cobra.Command {
	var (
		tokenFile   string
		index       int
		action      string
		breakpoints string
	)
	actions := make([]string, len(debugger.Actions))
	for i, act := range debugger.Actions {
		actions[i] = string(act)
	}

	cmd := &cobra.Command{
		Use:   "step",
		Short: "Apply one debugger action",
		Long: fmt.Sprintf(`Move the debugger one action from --index and print the circuit at
the new position. Actions: %s.`, strings.Join(actions, ", ")),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			token, err := readToken(tokenFile)
			if err != nil {
				return err
			}
			res, err := a.engine.Step(cmd.Context(), engine.StepRequest{
				Token:       token,
				DebugIndex:  index,
				Action:      debugger.Action(action),
				Breakpoints: debugger.ParseBreakpoints(strings.ReplaceAll(breakpoints, ",", " ")),
			})
			if err != nil {
				return err
			}
			if a.json {
				return a.printJSON(res)
			}
			if res.Found {
				cmd.Printf("index %d, before line %d\n\n", res.DebugIndex, res.Highlight)
			} else {
				cmd.Printf("index %d, finished\n\n", res.DebugIndex)
			}
			cmd.Println(res.Diagram)
			cmd.Printf("\noutput: %s\n", res.Output)
			return nil
		},
	}
	cmd.Flags().StringVar(&tokenFile, "token-file", "", "File holding the session token (- for stdin)")
	cmd.Flags().IntVar(&index, "index", -1, "Current debug index")
	cmd.Flags().StringVar(&action, "action", string(debugger.StepOver), "Debugger action")
	cmd.Flags().StringVar(&breakpoints, "breakpoints", "", "Breakpoint line numbers, e.g. \"3 5\"")
	return cmd
}

func newExpandCommand(a *app) *cobra.Command {
	var (
		tokenFile string
		id        int
		endIdx    int
	)
	cmd := &cobra.Command{
		Use:   "expand",
		Short: "List the subroutines called below a command",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			token, err := readToken(tokenFile)
			if err != nil {
				return err
			}
			children, err := a.engine.Expand(cmd.Context(), token, id, endIdx)
			if err != nil {
				return err
			}
			if a.json {
				if children == nil {
					children = []command.Child{}
				}
				return a.printJSON(children)
			}
			if len(children) == 0 {
				cmd.Println("no subroutine calls")
				return nil
			}
			printChildren(cmd, children)
			return nil
		},
	}
	cmd.Flags().StringVar(&tokenFile, "token-file", "", "File holding the session token (- for stdin)")
	cmd.Flags().IntVar(&id, "id", 0, "Command id to expand")
	cmd.Flags().IntVar(&endIdx, "end-idx", -1, "Only consider commands before this index")
	return cmd
}

func newQASMCommand(a *app) *cobra.Command {
	var cut int
	cmd := &cobra.Command{
		Use:   "qasm FILE",
		Short: "Export the circuit as OpenQASM 2.0",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := readProgram(args[0])
			if err != nil {
				return err
			}
			out, err := a.engine.QASM(cmd.Context(), src, cut)
			if err != nil {
				return err
			}
			if a.json {
				return a.printJSON(map[string]string{"qasm": out})
			}
			cmd.Print(out)
			return nil
		},
	}
	cmd.Flags().IntVar(&cut, "cut", -1, "Only export commands before this debug index")
	return cmd
}

func newDebugCommand(a *app) *cobra.Command {
	var logFile string
	cmd := &cobra.Command{
		Use:   "debug FILE",
		Short: "Step through a program interactively",
		Long: `Open the interactive debugger on FILE. The program is reloaded whenever
the file is saved. Logs are discarded unless --log-file is given, since
the debugger owns the terminal.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(args[0]); err != nil {
				return err
			}
			logger := clog.Discard()
			if logFile != "" {
				f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
				if err != nil {
					return fmt.Errorf("failed to open log file: %w", err)
				}
				defer f.Close()
				lc := a.logConfig()
				lc.Output = f
				logger = clog.New(lc)
			}
			e := engine.New(a.cfg, logger)
			return tui.Run(cmd.Context(), e, args[0], logger)
		},
	}
	cmd.Flags().StringVar(&logFile, "log-file", "", "Write logs to this file")
	return cmd
}

// VersionInfo contains version metadata
type VersionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
}

func newVersionCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := VersionInfo{Version: version, Commit: commit, BuildDate: buildDate}
			if a.json {
				return a.printJSON(info)
			}
			cmd.Printf("circinspect version %s\n", info.Version)
			cmd.Printf("  commit:     %s\n", info.Commit)
			cmd.Printf("  build date: %s\n", info.BuildDate)
			return nil
		},
	}
}
