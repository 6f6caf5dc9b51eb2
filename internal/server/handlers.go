package server

import (
	"errors"
	"net/http"
	"time"

	"expeditor/internal/engine"
	"expeditor/internal/models"
	"expeditor/internal/timing"

	"github.com/gin-gonic/gin"
)

// OrderView is an order snapshot decorated with the derived duration
// fields the boards render. The derived values are computed on read from
// the order's instants, never stored.
type OrderView struct {
	models.Order
	ElapsedMinutes   int    `json:"elapsed_minutes"`
	RemainingMinutes int    `json:"remaining_minutes"`
	Urgent           bool   `json:"urgent"`
	Overdue          bool   `json:"overdue"`
	Countdown        string `json:"countdown"`
}

// TimerView is a timer snapshot decorated with derived countdown fields.
type TimerView struct {
	models.Timer
	ElapsedSeconds   int    `json:"elapsed_seconds"`
	RemainingSeconds int    `json:"remaining_seconds"`
	Urgent           bool   `json:"urgent"`
	Overdue          bool   `json:"overdue"`
	Countdown        string `json:"countdown"`
}

// StationItemView is one line on a station board: the item plus enough of
// its parent order to act on it.
type StationItemView struct {
	OrderID     string             `json:"order_id"`
	OrderNumber string             `json:"order_number"`
	Priority    models.Priority    `json:"priority"`
	OrderStatus models.OrderStatus `json:"order_status"`
	Item        models.OrderItem   `json:"item"`
}

func newOrderView(o models.Order, now time.Time) OrderView {
	remaining := timing.RemainingMinutes(o.EstimatedCompletionTime, now)
	complete := o.IsTerminal()
	return OrderView{
		Order:            o,
		ElapsedMinutes:   timing.ElapsedMinutes(o.CreatedAt, now),
		RemainingMinutes: remaining,
		Urgent:           !complete && timing.IsUrgent(remaining),
		Overdue:          timing.IsOverdue(remaining, complete),
		Countdown:        timing.FormatCountdown(int(o.EstimatedCompletionTime.Sub(now) / time.Second)),
	}
}

func newTimerView(t models.Timer, now time.Time) TimerView {
	remainingSec := t.RemainingSeconds(now)
	complete := t.Status == models.TimerStatusCompleted
	return TimerView{
		Timer:            t,
		ElapsedSeconds:   int(t.Elapsed(now) / time.Second),
		RemainingSeconds: remainingSec,
		Urgent:           !complete && timing.IsUrgent(t.RemainingMinutes(now)),
		Overdue:          timing.IsOverdue(t.RemainingMinutes(now), complete),
		Countdown:        timing.FormatCountdown(remainingSec),
	}
}

// actorRequest is the optional body of a transition request naming who
// acted. Absent body means an anonymous board action.
type actorRequest struct {
	By string `json:"by"`
}

func (s *Server) actor(c *gin.Context) string {
	if c.Request.ContentLength > 0 {
		var req actorRequest
		if err := c.ShouldBindJSON(&req); err == nil && req.By != "" {
			return req.By
		}
	}
	return "board"
}

// writeTransitionError maps engine errors onto status codes: unknown ids
// are 404, unreachable or guarded transitions are 409 with enough detail
// for the board to explain the block.
func (s *Server) writeTransitionError(c *gin.Context, err error) {
	var invalid *engine.InvalidTransitionError
	var precondition *engine.PreconditionFailedError
	switch {
	case errors.Is(err, engine.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &invalid):
		c.JSON(http.StatusConflict, gin.H{
			"error": invalid.Error(),
			"from":  invalid.From,
			"to":    invalid.To,
		})
	case errors.As(err, &precondition):
		c.JSON(http.StatusConflict, gin.H{
			"error":        precondition.Error(),
			"blocking_ids": precondition.BlockingIDs,
		})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	}
}

// handleQueueBoard returns every live order with derived timing, oldest
// first, for the kitchen queue board.
func (s *Server) handleQueueBoard(c *gin.Context) {
	now := s.engine.Now()
	orders := s.engine.Orders()
	views := make([]OrderView, 0, len(orders))
	for _, o := range orders {
		views = append(views, newOrderView(o, now))
	}
	c.JSON(http.StatusOK, views)
}

// handleOrderDetail returns one order for the preparation detail board.
func (s *Server) handleOrderDetail(c *gin.Context) {
	o, ok := s.engine.Order(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		return
	}
	c.JSON(http.StatusOK, newOrderView(o, s.engine.Now()))
}

func (s *Server) handleCreateOrder(c *gin.Context) {
	var order models.Order
	if err := c.ShouldBindJSON(&order); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	created, err := s.engine.CreateOrder(order, "intake")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, newOrderView(created, s.engine.Now()))
}

func (s *Server) handleStartOrder(c *gin.Context) {
	s.orderTransition(c, s.engine.StartOrder)
}

func (s *Server) handleOrderReady(c *gin.Context) {
	s.orderTransition(c, s.engine.MarkOrderReady)
}

func (s *Server) handleForceOrderReady(c *gin.Context) {
	s.orderTransition(c, s.engine.ForceOrderReady)
}

func (s *Server) handleCompleteOrder(c *gin.Context) {
	s.orderTransition(c, s.engine.CompleteOrder)
}

func (s *Server) handleCancelOrder(c *gin.Context) {
	s.orderTransition(c, s.engine.CancelOrder)
}

func (s *Server) orderTransition(c *gin.Context, transition func(string, string) (models.Order, error)) {
	o, err := transition(c.Param("id"), s.actor(c))
	if err != nil {
		s.writeTransitionError(c, err)
		return
	}
	c.JSON(http.StatusOK, newOrderView(o, s.engine.Now()))
}

func (s *Server) handleArchiveOrder(c *gin.Context) {
	if err := s.engine.ArchiveOrder(c.Param("id"), s.actor(c)); err != nil {
		s.writeTransitionError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "order archived"})
}

func (s *Server) handleStartItem(c *gin.Context) {
	s.itemTransition(c, s.engine.StartItem)
}

func (s *Server) handleItemReady(c *gin.Context) {
	s.itemTransition(c, s.engine.MarkItemReady)
}

func (s *Server) handleForceItemReady(c *gin.Context) {
	s.itemTransition(c, s.engine.ForceItemReady)
}

func (s *Server) itemTransition(c *gin.Context, transition func(string, string, string) (models.Order, error)) {
	o, err := transition(c.Param("id"), c.Param("itemID"), s.actor(c))
	if err != nil {
		s.writeTransitionError(c, err)
		return
	}
	c.JSON(http.StatusOK, newOrderView(o, s.engine.Now()))
}

func (s *Server) handleStartStep(c *gin.Context) {
	s.stepTransition(c, s.engine.StartStep)
}

func (s *Server) handleCompleteStep(c *gin.Context) {
	s.stepTransition(c, s.engine.CompleteStep)
}

func (s *Server) stepTransition(c *gin.Context, transition func(string, string, string, string) (models.Order, error)) {
	o, err := transition(c.Param("id"), c.Param("itemID"), c.Param("stepID"), s.actor(c))
	if err != nil {
		s.writeTransitionError(c, err)
		return
	}
	c.JSON(http.StatusOK, newOrderView(o, s.engine.Now()))
}

// handleStationBoard returns every live item assigned to one station,
// queue order preserved.
func (s *Server) handleStationBoard(c *gin.Context) {
	station := c.Param("station")
	if !models.IsStationValid(station) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown station: " + station})
		return
	}

	var views []StationItemView
	for _, o := range s.engine.Orders() {
		if o.IsTerminal() {
			continue
		}
		for _, item := range o.Items {
			if item.Station != models.Station(station) {
				continue
			}
			views = append(views, StationItemView{
				OrderID:     o.ID,
				OrderNumber: o.Number,
				Priority:    o.Priority,
				OrderStatus: o.Status,
				Item:        item,
			})
		}
	}
	c.JSON(http.StatusOK, views)
}

// handleTimerBoard returns every live timer with derived countdowns.
func (s *Server) handleTimerBoard(c *gin.Context) {
	now := s.engine.Now()
	timers := s.engine.Timers()
	views := make([]TimerView, 0, len(timers))
	for _, t := range timers {
		views = append(views, newTimerView(t, now))
	}
	c.JSON(http.StatusOK, views)
}

func (s *Server) handleStartTimer(c *gin.Context) {
	var spec engine.TimerSpec
	if err := c.ShouldBindJSON(&spec); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	t, err := s.engine.StartTimer(spec, "board")
	if err != nil {
		s.writeTransitionError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newTimerView(t, s.engine.Now()))
}

func (s *Server) handlePauseTimer(c *gin.Context) {
	s.timerTransition(c, s.engine.PauseTimer)
}

func (s *Server) handleResumeTimer(c *gin.Context) {
	s.timerTransition(c, s.engine.ResumeTimer)
}

func (s *Server) handleCompleteTimer(c *gin.Context) {
	s.timerTransition(c, s.engine.CompleteTimer)
}

func (s *Server) timerTransition(c *gin.Context, transition func(string, string) (models.Timer, error)) {
	t, err := transition(c.Param("id"), s.actor(c))
	if err != nil {
		s.writeTransitionError(c, err)
		return
	}
	c.JSON(http.StatusOK, newTimerView(t, s.engine.Now()))
}

func (s *Server) handleDeleteTimer(c *gin.Context) {
	if err := s.engine.DeleteTimer(c.Param("id"), s.actor(c)); err != nil {
		s.writeTransitionError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "timer deleted"})
}

// handleMenu returns the cached menu availability records.
func (s *Server) handleMenu(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.MenuItems())
}

// handleForceReadyAudit returns the recorded force-ready overrides.
func (s *Server) handleForceReadyAudit(c *gin.Context) {
	if s.audit == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no audit store configured"})
		return
	}
	records, err := s.audit.ForceReadyRecords()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, records)
}
