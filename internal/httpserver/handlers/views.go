package handlers

import (
	"time"

	"github.com/MrSnakeDoc/clashfun/internal/accelerator"
	"github.com/MrSnakeDoc/clashfun/internal/domain"
	"github.com/MrSnakeDoc/clashfun/internal/subscription"
)

type selectionView struct {
	Node       string         `json:"node"`
	Server     string         `json:"server"`
	Region     string         `json:"region,omitempty"`
	LatencyMS  int64          `json:"latency_ms"`
	SelectedAt time.Time      `json:"selected_at"`
	Trigger    domain.Trigger `json:"trigger"`
}

func newSelectionView(s *domain.Selection) *selectionView {
	if s == nil || s.Node == nil {
		return nil
	}
	return &selectionView{
		Node:       s.Node.Name,
		Server:     s.Node.Address(),
		Region:     s.Node.Region,
		LatencyMS:  s.Latency().Milliseconds(),
		SelectedAt: s.SelectedAt,
		Trigger:    s.Trigger,
	}
}

type rejectView struct {
	Line    int    `json:"line,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Node    string `json:"node,omitempty"`
	Snippet string `json:"snippet,omitempty"`
}

func newRejectViews(in []*subscription.ParseError) []rejectView {
	out := make([]rejectView, 0, len(in))
	for _, pe := range in {
		out = append(out, rejectView{
			Line:    pe.AppError.Line,
			Code:    pe.AppError.Code,
			Message: pe.AppError.Message,
			Node:    pe.AppError.Node,
			Snippet: pe.AppError.Snippet,
		})
	}
	return out
}

type reportView struct {
	Generation     uint64           `json:"generation"`
	Format         string           `json:"format"`
	Nodes          int              `json:"nodes"`
	Rejected       []rejectView     `json:"rejected"`
	Selection      *selectionView   `json:"selection,omitempty"`
	SelectionError *domain.AppError `json:"selection_error,omitempty"`
}

func newReportView(r *accelerator.Report) reportView {
	v := reportView{
		Generation: r.Generation,
		Format:     string(r.Format),
		Nodes:      r.Nodes,
		Rejected:   newRejectViews(r.Rejected),
		Selection:  newSelectionView(r.Selection),
	}
	if r.SelectionError != nil {
		_, appErr := errorStatus(r.SelectionError)
		v.SelectionError = &appErr
	}
	return v
}

type nodeView struct {
	Name      string `json:"name"`
	Server    string `json:"server"`
	Region    string `json:"region,omitempty"`
	Cipher    string `json:"cipher"`
	Reachable *bool  `json:"reachable,omitempty"`
	LatencyMS *int64 `json:"latency_ms,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`
	Active    bool   `json:"active"`
}

func newNodeView(v accelerator.NodeView) nodeView {
	out := nodeView{
		Name:   v.Node.Name,
		Server: v.Node.Address(),
		Region: v.Node.Region,
		Cipher: v.Node.Cipher,
		Active: v.Active,
	}
	if v.Result != nil {
		reachable := v.Result.Reachable()
		out.Reachable = &reachable
		if l, ok := v.Result.Latency(); ok {
			ms := l.Milliseconds()
			out.LatencyMS = &ms
		}
		out.ErrorKind = string(v.Result.ErrorKind())
	}
	return out
}
