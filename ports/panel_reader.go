package ports

import (
	"context"

	"gocausal/domain/panel"
)

// PanelReader loads the unit-by-period panel the estimators run on
type PanelReader interface {
	ReadPanel(ctx context.Context) (*panel.Frame, error)
}
