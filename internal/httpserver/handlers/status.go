package handlers

import (
	"net/http"
	"time"

	"github.com/MrSnakeDoc/clashfun/internal/domain"
	"github.com/MrSnakeDoc/clashfun/internal/httpserver/deps"
)

type subscriptionView struct {
	Source     string       `json:"source"`
	Format     string       `json:"format"`
	FetchedAt  time.Time    `json:"fetched_at"`
	Generation uint64       `json:"generation"`
	Nodes      int          `json:"nodes"`
	Rejected   []rejectView `json:"rejected,omitempty"`
}

type cycleView struct {
	CompletedAt time.Time `json:"completed_at"`
	DurationMS  int64     `json:"duration_ms"`
	Reachable   int       `json:"reachable"`
	Unreachable int       `json:"unreachable"`
}

type sessionView struct {
	State  domain.SessionState `json:"state"`
	Active string              `json:"active,omitempty"`
	Error  string              `json:"error,omitempty"`
}

type gameView struct {
	Games   []string `json:"games"`
	Regions []string `json:"regions"`
}

type statusResponse struct {
	Subscription   *subscriptionView `json:"subscription"`
	ProxyPort      int               `json:"proxy_port"`
	AutoSelect     bool              `json:"auto_select"`
	Pinned         string            `json:"pinned,omitempty"`
	Selection      *selectionView    `json:"selection"`
	SelectionError *domain.AppError  `json:"selection_error,omitempty"`
	LastCycle      *cycleView        `json:"last_cycle,omitempty"`
	Session        sessionView       `json:"session"`
	Game           gameView          `json:"game"`
}

func Status(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st := d.Accelerator.Status()
		resp := statusResponse{
			ProxyPort:  d.ProxyPort,
			AutoSelect: st.Pinned == "",
			Pinned:     st.Pinned,
			Selection:  newSelectionView(st.Selection),
			Session: sessionView{
				State:  st.Session.State,
				Active: st.Session.Active.Name(),
			},
			Game: gameView{Games: st.Game.Games, Regions: st.Game.Regions},
		}
		if s := st.Subscription; s != nil {
			resp.Subscription = &subscriptionView{
				Source:     s.Source,
				Format:     string(s.Format),
				FetchedAt:  s.FetchedAt,
				Generation: s.Generation,
				Nodes:      s.Nodes,
				Rejected:   newRejectViews(s.Rejected),
			}
		}
		if c := st.LastCycle; c != nil {
			resp.LastCycle = &cycleView{
				CompletedAt: c.CompletedAt,
				DurationMS:  c.CompletedAt.Sub(c.StartedAt).Milliseconds(),
				Reachable:   c.Reachable,
				Unreachable: c.Unreachable,
			}
		}
		if st.SelectionError != nil {
			_, appErr := errorStatus(st.SelectionError)
			resp.SelectionError = &appErr
		}
		if st.Session.Err != nil {
			resp.Session.Error = st.Session.Err.Error()
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
