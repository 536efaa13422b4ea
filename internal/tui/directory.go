package tui

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/jask/demandboard/internal/api"
	"github.com/jask/demandboard/internal/party"
)

// Directory is who this client is and who it can name in a form. It is
// loaded once at start-up and handed to every dialog.
type Directory struct {
	Me            party.Name
	Peers         []string
	PlatformLeads []string
	DeliveryTeams []string
}

// Names is the part of the API client LoadDirectory needs.
type Names interface {
	Me(ctx context.Context) (party.Name, error)
	Peers(ctx context.Context) ([]string, error)
	PlatformLeads(ctx context.Context) ([]string, error)
	DeliveryTeams(ctx context.Context) ([]string, error)
}

var _ Names = (*api.Client)(nil)

// LoadDirectory reads the node identity and the peer lists. Only the
// identity is required; a list that fails to load is logged and left empty.
func LoadDirectory(ctx context.Context, n Names, log *logrus.Logger) (Directory, error) {
	var d Directory
	me, err := n.Me(ctx)
	if err != nil {
		return d, fmt.Errorf("load identity: %w", err)
	}
	d.Me = me

	lists := []struct {
		name string
		dst  *[]string
		load func(context.Context) ([]string, error)
	}{
		{"peers", &d.Peers, n.Peers},
		{"platform leads", &d.PlatformLeads, n.PlatformLeads},
		{"delivery teams", &d.DeliveryTeams, n.DeliveryTeams},
	}
	for _, l := range lists {
		names, err := l.load(ctx)
		if err != nil {
			log.WithError(err).WithField("list", l.name).Warn("directory list unavailable")
			continue
		}
		*l.dst = names
	}
	return d, nil
}
