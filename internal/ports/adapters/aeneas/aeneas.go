// Package aeneas binds the Aligner port to the aeneas forced-alignment tool,
// invoked through its Python entry point.
package aeneas

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/redubhq/redub/internal/errors"
	"github.com/redubhq/redub/internal/types"
)

type Adapter struct {
	python   string
	language string
}

func New(pythonPath, language string) *Adapter {
	if pythonPath == "" {
		pythonPath = "python3"
	}
	if language == "" {
		language = "eng"
	}
	return &Adapter{python: pythonPath, language: language}
}

// Align runs one alignment task and returns the segment sequence from the
// JSON sync map. The sync-map file lands in workDir, named after the audio
// input, so two runs for the same request never collide.
func (a *Adapter) Align(ctx context.Context, audioPath, scriptPath, workDir string) ([]types.Segment, error) {
	base := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	syncMapPath := filepath.Join(workDir, base+".syncmap.json")

	task := fmt.Sprintf("task_language=%s|is_text_type=plain|os_task_file_format=json", a.language)
	cmd := exec.CommandContext(ctx, a.python,
		"-m", "aeneas.tools.execute_task",
		audioPath,
		scriptPath,
		task,
		syncMapPath,
	)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return nil, errors.ExternalProcess("aeneas alignment failed").WithCause(
			fmt.Errorf("%w\n%s", err, string(b)))
	}

	jb, err := os.ReadFile(syncMapPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.OutputMissing("aeneas reported success but sync map %s is absent", syncMapPath)
		}
		return nil, err
	}
	return parseSyncMap(jb)
}

// syncMap mirrors aeneas' JSON task output. Fragment boundaries arrive as
// strings in practice but numbers are accepted too.
type syncMap struct {
	Fragments []fragment `json:"fragments"`
}

type fragment struct {
	Begin flexFloat `json:"begin"`
	End   flexFloat `json:"end"`
	Lines []string  `json:"lines"`
}

type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("parse fragment boundary %q: %w", s, err)
	}
	*f = flexFloat(v)
	return nil
}

func parseSyncMap(b []byte) ([]types.Segment, error) {
	var sm syncMap
	if err := json.Unmarshal(b, &sm); err != nil {
		return nil, errors.Format("parse aeneas sync map").WithCause(err)
	}
	if len(sm.Fragments) == 0 {
		return nil, errors.Format("aeneas sync map has no fragments")
	}
	return lo.Map(sm.Fragments, func(fr fragment, i int) types.Segment {
		return types.Segment{
			Index: i + 1,
			Start: float64(fr.Begin),
			End:   float64(fr.End),
			Text:  strings.TrimSpace(strings.Join(fr.Lines, " ")),
		}
	}), nil
}
