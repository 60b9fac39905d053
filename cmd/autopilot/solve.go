package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/wippyai/autopilot-bridge/autopilot"
)

// solveJob is the YAML input of the solve command.
type solveJob struct {
	Kind           string    `yaml:"kind"` // ssp, multi, qp
	SyncPlanes     []bool    `yaml:"sync_planes"`
	OldState       []float64 `yaml:"old_state"`
	Observations   []float64 `yaml:"observations"`
	Missing        []bool    `yaml:"missing"`
	MaxCorrection  []float64 `yaml:"max_correction"`
	Wavelengths    int32     `yaml:"wavelengths"`
	Planes         int32     `yaml:"planes"`
	SyncPlane      int32     `yaml:"sync_plane"`
	DetectAnchor   bool      `yaml:"detect_anchor"`
	AnchorSymmetry bool      `yaml:"anchor_symmetry"`
}

// solveResult is written back as YAML.
type solveResult struct {
	Kind     string    `yaml:"kind"`
	NewState []float64 `yaml:"new_state"`
	Status   int32     `yaml:"status"`
}

func loadJob(path string) (*solveJob, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read job: %w", err)
	}
	var job solveJob
	if err := yaml.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("parse job: %w", err)
	}
	switch job.Kind {
	case "ssp", "multi", "qp":
	case "":
		job.Kind = "ssp"
	default:
		return nil, fmt.Errorf("unknown solver kind %q (ssp, multi or qp)", job.Kind)
	}
	return &job, nil
}

// request builds the solver request, zero-filling arrays the job omits.
func (j *solveJob) request() autopilot.SolveRequest {
	w, p := int(j.Wavelengths), int(j.Planes)
	req := autopilot.SolveRequest{
		DetectAnchor:   j.DetectAnchor,
		AnchorSymmetry: j.AnchorSymmetry,
		Wavelengths:    j.Wavelengths,
		Planes:         j.Planes,
		SyncPlane:      j.SyncPlane,
		SyncPlanes:     j.SyncPlanes,
		OldState:       j.OldState,
		Observations:   j.Observations,
		Missing:        j.Missing,
		MaxCorrection:  j.MaxCorrection,
	}
	if w <= 0 || p <= 0 {
		return req
	}
	if req.OldState == nil {
		req.OldState = make([]float64, autopilot.StateVectorLength(w, p))
	}
	if req.Observations == nil {
		req.Observations = make([]float64, autopilot.ObservationVectorLength(w, p))
	}
	if req.Missing == nil {
		req.Missing = make([]bool, autopilot.ObservationVectorLength(w, p))
	}
	if req.SyncPlanes == nil && j.Kind != "ssp" {
		req.SyncPlanes = make([]bool, autopilot.SyncPlaneLength(w, p))
	}
	if req.MaxCorrection == nil && j.Kind == "qp" {
		req.MaxCorrection = make([]float64, autopilot.StateVectorLength(w, p))
	}
	return req
}

func newSolveCmd(g *globalFlags) *cobra.Command {
	var jobPath string

	cmd := &cobra.Command{
		Use:   "solve",
		Short: "Run a solver job described in YAML",
		Long: `solve reads a job file, runs the l2solve (ssp or multi) or qpsolve
operation and prints the status and new state as YAML.

  kind: multi
  wavelengths: 2
  planes: 1
  sync_planes: [true, false]
  old_state: [...]   # omitted arrays are zero-filled`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			job, err := loadJob(jobPath)
			if err != nil {
				return err
			}
			req := job.request()

			s, err := g.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close(cmd.Context())

			res := solveResult{Kind: job.Kind, NewState: make([]float64, len(req.OldState))}
			copy(res.NewState, req.OldState)

			switch job.Kind {
			case "ssp":
				res.Status, err = s.L2SolveSingle(cmd.Context(), req, res.NewState)
			case "multi":
				res.Status, err = s.L2SolveMulti(cmd.Context(), req, res.NewState)
			case "qp":
				res.Status, err = s.QPSolve(cmd.Context(), req, res.NewState)
			}
			if err != nil {
				if msg, ok, _ := s.LastException(cmd.Context()); ok {
					return fmt.Errorf("%w: %s", err, msg)
				}
				return err
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(res)
		},
	}

	cmd.Flags().StringVarP(&jobPath, "job", "j", "", "solver job YAML file")
	_ = cmd.MarkFlagRequired("job")
	return cmd
}
