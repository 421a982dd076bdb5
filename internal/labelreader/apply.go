package labelreader

import (
	"context"
	"fmt"

	"cellar/internal/services"
	"cellar/internal/store"
)

// ApplyToWine copies a done task's reading into wineID, filling only fields
// that are still empty. Values already on the wine are never replaced.
func ApplyToWine(ctx context.Context, st *store.Store, taskID, wineID int64) (store.Wine, bool, error) {
	task, err := st.GetLabelTask(ctx, taskID)
	if err != nil {
		return store.Wine{}, false, err
	}
	if task.Status != store.TaskDone {
		return store.Wine{}, false, services.Wrap(services.ErrInvalidTransition, "labelreader", "apply",
			fmt.Sprintf("label task %d is %s, not done", taskID, task.Status), nil)
	}
	payload, err := ParsePayload(task.Payload)
	if err != nil {
		return store.Wine{}, false, services.Wrap(services.ErrValidation, "labelreader", "apply", "stored payload unreadable", err)
	}
	return st.PatchWineDescriptors(ctx, wineID, payload.Descriptors(), store.PatchFillMissing)
}
