package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jooh/expcontrol/internal/design"
	"github.com/jooh/expcontrol/internal/device"
	"github.com/jooh/expcontrol/internal/engine"
)

// ValidationResult is the output of the validate command.
type ValidationResult struct {
	Valid      bool     `json:"valid"`
	Name       string   `json:"name,omitempty"`
	Conditions []string `json:"conditions,omitempty"`
	Order      []string `json:"order,omitempty"`
	Timing     string   `json:"timing,omitempty"`
	Pre        bool     `json:"pre"`
	Post       bool     `json:"post"`
}

// ValidationError locates a design error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <design-dir>",
		Short: "Compile a design without running it",
		Long: `Compile the CUE design in a directory and report its conditions.

Stimuli are resolved headless, so any stimulus name is accepted.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, dir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	files, _ := design.FindCUEFiles(dir)
	formatter.VerboseLog("Found %d CUE file(s) in %s", len(files), dir)

	d, err := design.Load(dir, headless)
	if err != nil {
		verr := ValidationError{Field: "design", Message: err.Error()}
		var ce *design.CompileError
		if errors.As(err, &ce) {
			verr.Field = ce.Field
			verr.Message = ce.Message
			if ce.Pos.IsValid() {
				verr.File = ce.Pos.Filename()
				verr.Line = ce.Pos.Line()
			}
		}
		_ = formatter.Error(ErrCodeDesign, err.Error(), verr)
		return WrapExitError(ExitFailure, "design is invalid", err)
	}

	result := ValidationResult{
		Valid:      true,
		Name:       d.Name,
		Conditions: d.ConditionNames(),
		Order:      d.Order,
		Timing:     d.Timing.String(),
		Pre:        d.Pre != nil,
		Post:       d.Post != nil,
	}
	text := fmt.Sprintf("✓ design %q is valid\n  conditions: %s\n  order: %s\n  timing: %s\n",
		d.Name, strings.Join(result.Conditions, ", "), strings.Join(d.Order, ", "), result.Timing)
	return formatter.Success(result, text)
}

var headless = design.StimulusFunc(func(name string) (engine.Drawable, error) {
	return device.NewStimulus(name), nil
})
