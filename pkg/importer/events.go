package importer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/synaptica-ai/hospital-import/pkg/common/kafka"
	"github.com/synaptica-ai/hospital-import/pkg/common/logger"
	"github.com/synaptica-ai/hospital-import/pkg/common/models"
)

// RequestHandler runs the import described by each import.requested event.
// Events of other types are skipped; a failed import is logged and the message
// committed, since replaying it would fail the same way.
func RequestHandler(run Runner) kafka.EventHandler {
	return func(ctx context.Context, event models.Event) error {
		if event.Type != models.EventImportRequested {
			return nil
		}
		req, err := decodeRequest(event.Data)
		if err != nil {
			logger.Log.WithError(err).WithField("event_id", event.ID).Warn("ignoring malformed import request")
			return nil
		}
		if _, err := run(ctx, req); err != nil {
			logger.Log.WithError(err).WithFields(map[string]interface{}{
				"event_id":    event.ID,
				"institution": req.Institution,
			}).Error("requested import failed")
		}
		return nil
	}
}

func decodeRequest(data map[string]interface{}) (models.ImportRequest, error) {
	var req models.ImportRequest
	raw, err := json.Marshal(data)
	if err != nil {
		return req, err
	}
	if err := json.Unmarshal(raw, &req); err != nil {
		return req, err
	}
	if req.Institution == "" || req.PatientsFile == "" || req.TreatmentsFile == "" {
		return req, fmt.Errorf("import request needs institution, patients_file and treatments_file")
	}
	return req, nil
}
