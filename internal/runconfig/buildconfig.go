package runconfig

import (
	"encoding/json"
	"os"
	"path/filepath"

	perr "otp4gb/internal/platform/errors"
	"otp4gb/internal/platform/logger"
)

// BuildConfigFileName is the engine's graph build settings file
const BuildConfigFileName = "build-config.json"

// WriteBuildConfig writes the graph build settings next to the graph
// inputs. Site-wide defaults are read from <confDir>/build-config.json
// when present, then the transit service window is pinned to the day
// either side of the run date
func WriteBuildConfig(confDir, graphDir string, date Date) error {
	log := logger.Named("runconfig")

	data := map[string]any{}
	defaultPath := filepath.Join(confDir, BuildConfigFileName)
	if raw, err := os.ReadFile(defaultPath); err == nil {
		if err := json.Unmarshal(raw, &data); err != nil {
			return perr.Wrapf(err, perr.ErrorCodeValidation,
				"parse default build config %s", defaultPath)
		}
		log.Info().Str("path", defaultPath).Msg("loaded default build config")
	}

	data["transitServiceStart"] = date.AddDate(0, 0, -1).Format(dateLayout)
	data["transitServiceEnd"] = date.AddDate(0, 0, 1).Format(dateLayout)

	out, err := json.Marshal(data)
	if err != nil {
		return perr.Wrap(err, perr.ErrorCodeJSON, "encode build config")
	}
	path := filepath.Join(graphDir, BuildConfigFileName)
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeStartup, "write build config %s", path)
	}
	log.Info().Str("path", path).Msg("written build config")
	return nil
}
