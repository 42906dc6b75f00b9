package kajiya

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"syscall"
)

// Stage is one external command execution: a command line bound to a
// working directory and an environment snapshot. Stateless once defined;
// the orchestrator executes each stage at most once per run.
type Stage struct {
	Name string   // human label printed before the command runs
	Dir  string   // working directory
	Argv []string // command line, argv[0] is the program
	Env  []string // full environment snapshot from composeEnv
}

// StageRunner executes stages. The production implementation shells out;
// tests substitute a recording double.
type StageRunner interface {
	Run(stage Stage) error
}

// ExecRunner runs stages through os/exec, streaming the child's combined
// output line-buffered as it is produced. A non-zero exit is returned
// verbatim; the caller treats it as fatal to the enclosing recipe.
type ExecRunner struct {
	Context context.Context // cancellation kills the child's process group
	Out     io.Writer       // stage output sink; defaults to os.Stdout
}

func NewExecRunner(ctx context.Context) *ExecRunner {
	return &ExecRunner{Context: ctx, Out: os.Stdout}
}

func (r *ExecRunner) Run(stage Stage) error {
	colArrow.Print("-> ")
	colSuccess.Printf("%s\n", stage.Name)
	debugf("exec %v (cwd %s)\n", stage.Argv, stage.Dir)

	if err := os.MkdirAll(stage.Dir, 0o755); err != nil {
		return fmt.Errorf("failed to create stage dir %s: %w", stage.Dir, err)
	}

	cmd := exec.Command(stage.Argv[0], stage.Argv[1:]...)
	cmd.Dir = stage.Dir
	cmd.Env = stage.Env
	cmd.Stdin = os.Stdin

	out := r.Out
	if out == nil {
		out = os.Stdout
	}

	// Merge stderr into stdout so the build log is one ordered stream,
	// then relay it line by line as the tool produces it.
	pipe, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to open output pipe: %w", err)
	}
	cmd.Stderr = cmd.Stdout

	// Isolate the process group so cancellation can tear down make's
	// entire child tree, not just the top process.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", stage.Argv[0], err)
	}
	pgid := cmd.Process.Pid

	done := make(chan struct{})
	defer close(done)
	if r.Context != nil {
		go func() {
			select {
			case <-r.Context.Done():
				syscall.Kill(-pgid, syscall.SIGKILL)
			case <-done:
			}
		}()
	}

	// No line-length cap on the relay: make echoes entire command lines,
	// which can exceed any fixed buffer. A capped scanner would stop
	// reading mid-run and leave the child blocked on a full pipe.
	reader := bufio.NewReader(pipe)
	for {
		line, readErr := reader.ReadString('\n')
		if line != "" {
			fmt.Fprint(out, line)
			if !strings.HasSuffix(line, "\n") {
				fmt.Fprintln(out)
			}
		}
		if readErr != nil {
			break
		}
	}

	if waitErr := cmd.Wait(); waitErr != nil {
		if r.Context != nil && r.Context.Err() != nil {
			return fmt.Errorf("stage aborted: %v", r.Context.Err())
		}
		return fmt.Errorf("stage %q failed: %w", stage.Name, waitErr)
	}
	return nil
}
