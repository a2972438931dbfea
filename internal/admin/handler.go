package admin

import (
	"context"
	"net/http"

	"dispatch_bot_backend/internal/domain"
	"dispatch_bot_backend/internal/session"
	"dispatch_bot_backend/platform/httpkit"
	"dispatch_bot_backend/platform/logger"
	"dispatch_bot_backend/platform/phone"

	"github.com/gin-gonic/gin"
)

// StatsSource reads the operational counters.
type StatsSource interface {
	Stats(ctx context.Context) (domain.Stats, error)
}

// Sessions is the slice of the session store the admin API touches.
type Sessions interface {
	Get(sender string) (session.Session, bool)
	Reset(ctx context.Context, sender string) error
	Len() int
}

// StatsResponse is the dashboard payload.
type StatsResponse struct {
	WaitingTickets    int            `json:"waitingTickets"`
	InProgressTickets int            `json:"inProgressTickets"`
	AvailableAgents   int            `json:"availableAgents"`
	ActiveOrders      int            `json:"activeOrders"`
	OrdersByStatus    map[string]int `json:"ordersByStatus"`
	AverageRating     float64        `json:"averageRating"`
	Reviews           int            `json:"reviews"`
	LiveSessions      int            `json:"liveSessions"`
}

// ResetResponse reports an administrative session reset.
type ResetResponse struct {
	Sender  string `json:"sender"`
	Flow    string `json:"flow,omitempty"`
	State   string `json:"state,omitempty"`
	Existed bool   `json:"existed"`
}

// Handler serves the operator endpoints.
type Handler struct {
	stats    StatsSource
	sessions Sessions
	log      *logger.Logger
}

// NewHandler creates a new admin handler.
func NewHandler(stats StatsSource, sessions Sessions, log *logger.Logger) *Handler {
	return &Handler{stats: stats, sessions: sessions, log: log}
}

// GetStats returns the counters for the dashboard.
// GET /api/v1/admin/stats
func (h *Handler) GetStats(c *gin.Context) {
	st, err := h.stats.Stats(c.Request.Context())
	if err != nil {
		h.log.WithContext(c.Request.Context()).DatabaseError("admin_stats", err)
		httpkit.HandleError(c, err)
		return
	}

	byStatus := make(map[string]int, len(st.OrdersByStatus))
	for status, n := range st.OrdersByStatus {
		byStatus[string(status)] = n
	}
	httpkit.OK(c, StatsResponse{
		WaitingTickets:    st.WaitingTickets,
		InProgressTickets: st.InProgressTickets,
		AvailableAgents:   st.AvailableAgents,
		ActiveOrders:      st.ActiveOrders,
		OrdersByStatus:    byStatus,
		AverageRating:     st.AverageRating,
		Reviews:           st.Reviews,
		LiveSessions:      h.sessions.Len(),
	})
}

// ResetSession drops a sender's session so their next message starts fresh.
// DELETE /api/v1/admin/sessions/:sender
func (h *Handler) ResetSession(c *gin.Context) {
	sender := phone.Address(c.Param("sender"))
	if sender == "" {
		httpkit.Error(c, http.StatusBadRequest, "invalid sender", nil)
		return
	}

	resp := ResetResponse{Sender: sender}
	if sess, ok := h.sessions.Get(sender); ok && sess.State != nil {
		resp.Existed = true
		resp.Flow = sess.State.Flow().String()
		resp.State = sess.State.String()
	}

	if err := h.sessions.Reset(c.Request.Context(), sender); err != nil {
		httpkit.Error(c, http.StatusConflict, "session is busy", err.Error())
		return
	}

	h.log.WithContext(c.Request.Context()).Info("session reset by operator",
		"sender", sender,
		"operator", httpkit.GetIdentity(c).Subject(),
		"existed", resp.Existed)
	httpkit.OK(c, resp)
}
