// Package fixtureserver is an in-memory stand-in for the dormitory backend.
// It exists so the client workflow can be exercised end to end on a laptop:
// same routes, same error envelope, same summary semantics as production.
package fixtureserver

import (
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/dormstack/dormops_client/models"
)

// expiredDisposalPenaltyPoints is the house-rule demerit for letting a
// registered item expire in the shared fridge.
var expiredDisposalPenaltyPoints = decimal.NewFromFloat(0.5)

type Server struct {
	mu sync.Mutex

	logger *logrus.Logger

	slots       map[string]*models.Slot
	slotItems   map[string][]models.InspectionItem
	sessions    map[string]*models.InspectionSession
	schedules   []models.InspectionSchedule
	rooms       []SeedRoom
	assignments map[string][]string

	nextActionId   int
	nextSnapshotId int
}

func New(seed *Seed, logger *logrus.Logger) *Server {
	s := &Server{
		logger:       logger,
		slots:        map[string]*models.Slot{},
		slotItems:    map[string][]models.InspectionItem{},
		sessions:     map[string]*models.InspectionSession{},
		rooms:        seed.Rooms,
		assignments:  map[string][]string{},
		nextActionId: 1,
	}
	for _, seedSlot := range seed.Slots {
		capacity := seedSlot.Capacity
		slot := &models.Slot{
			SlotId:         seedSlot.SlotId,
			SlotIndex:      seedSlot.SlotIndex,
			SlotLetter:     seedSlot.SlotLetter,
			FloorNo:        seedSlot.FloorNo,
			ResourceStatus: models.ResourceStatus(seedSlot.Status),
			Locked:         seedSlot.Locked,
		}
		if capacity > 0 {
			slot.Capacity = &capacity
		}
		s.slots[slot.SlotId] = slot
	}
	for _, bundle := range seed.Bundles {
		seq := len(s.slotItems[bundle.SlotId])
		for _, unit := range bundle.Units {
			seq++
			s.slotItems[bundle.SlotId] = append(s.slotItems[bundle.SlotId], models.InspectionItem{
				UnitId:      unit.UnitId,
				BundleId:    bundle.BundleId,
				BundleName:  bundle.Name,
				BundleLabel: bundle.Label,
				Name:        unit.Name,
				ExpiryDate:  unit.ExpiryDate,
				SeqNo:       seq,
			})
		}
		if slot, ok := s.slots[bundle.SlotId]; ok {
			occupied := 0
			if slot.OccupiedCount != nil {
				occupied = *slot.OccupiedCount
			}
			occupied++
			slot.OccupiedCount = &occupied
		}
	}
	for _, seedSchedule := range seed.Schedules {
		schedule := models.InspectionSchedule{
			ScheduleId: seedSchedule.ScheduleId,
			Status:     models.ScheduleStatus(seedSchedule.Status),
		}
		if at, err := time.Parse(time.RFC3339, seedSchedule.ScheduledAt); err == nil {
			schedule.ScheduledAt = at
		}
		if seedSchedule.Title != "" {
			title := seedSchedule.Title
			schedule.Title = &title
		}
		if seedSchedule.SlotId != "" {
			slotId := seedSchedule.SlotId
			schedule.FridgeCompartmentId = &slotId
		}
		if seedSchedule.FloorNo > 0 {
			floor := seedSchedule.FloorNo
			schedule.FloorNo = &floor
		}
		s.schedules = append(s.schedules, schedule)
	}
	return s
}

func apiError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{"code": code, "message": message})
}

// Router builds the gin engine. gin.SetMode is left to the caller.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Correlation-Id"},
	}))

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	r.GET("/fridge/slots", s.listSlots)
	r.GET("/fridge/inspections/active", s.activeSession)
	r.GET("/fridge/inspections/:id", s.getSession)
	r.POST("/fridge/inspections", s.startSession)
	r.POST("/fridge/inspections/:id/actions", s.createActions)
	r.DELETE("/fridge/inspections/:id/actions/:actionId", s.deleteAction)
	r.POST("/fridge/inspections/:id/submit", s.submitSession)
	r.DELETE("/fridge/inspections/:id", s.cancelSession)
	r.GET("/fridge/schedules", s.listSchedules)
	r.GET("/fridge/schedules/next", s.nextSchedule)
	r.GET("/fridge/admin/reallocation/preview", s.previewReallocation)
	r.PUT("/fridge/admin/compartments/:id/assignments", s.applyAssignment)

	return r
}

func (s *Server) listSlots(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	activeOnly := c.Query("status") == "active"
	slots := make([]models.Slot, 0, len(s.slots))
	for _, slot := range s.slots {
		if activeOnly && slot.ResourceStatus != models.ResourceStatusActive {
			continue
		}
		slots = append(slots, *slot)
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].SlotIndex < slots[j].SlotIndex })
	c.JSON(http.StatusOK, gin.H{"items": slots})
}

func (s *Server) activeSession(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	floor := 0
	if raw := c.Query("floor"); raw != "" {
		floor, _ = strconv.Atoi(raw)
	}
	var newest *models.InspectionSession
	for _, session := range s.sessions {
		if session.Status != models.SessionStatusInProgress {
			continue
		}
		if floor != 0 && session.FloorNo != floor {
			continue
		}
		if newest == nil || session.StartedAt.After(newest.StartedAt) {
			newest = session
		}
	}
	if newest == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, newest)
}

func (s *Server) getSession(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[c.Param("id")]
	if !ok {
		apiError(c, http.StatusNotFound, "SESSION_NOT_FOUND", "no such inspection session")
		return
	}
	c.JSON(http.StatusOK, session)
}

func (s *Server) startSession(c *gin.Context) {
	var body struct {
		SlotId     string `json:"slotId"`
		ScheduleId string `json:"scheduleId"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.SlotId == "" {
		apiError(c, http.StatusBadRequest, "INVALID_REQUEST", "slotId is required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	slot, ok := s.slots[body.SlotId]
	if !ok {
		apiError(c, http.StatusNotFound, "COMPARTMENT_NOT_FOUND", "no such compartment")
		return
	}
	if slot.Locked {
		apiError(c, http.StatusConflict, "COMPARTMENT_LOCKED", "compartment is locked")
		return
	}
	if slot.ResourceStatus != models.ResourceStatusActive {
		apiError(c, http.StatusConflict, "COMPARTMENT_INACTIVE", "compartment is not active")
		return
	}
	for _, session := range s.sessions {
		if session.Status == models.SessionStatusInProgress && session.SlotId == body.SlotId {
			apiError(c, http.StatusConflict, "SESSION_ACTIVE", "an inspection is already in progress on this compartment")
			return
		}
	}

	items := make([]models.InspectionItem, len(s.slotItems[body.SlotId]))
	copy(items, s.slotItems[body.SlotId])
	session := &models.InspectionSession{
		SessionId: uuid.NewString(),
		SlotId:    slot.SlotId,
		SlotIndex: slot.SlotIndex,
		FloorNo:   slot.FloorNo,
		Status:    models.SessionStatusInProgress,
		StartedBy: "fixture-actor",
		StartedAt: time.Now().UTC(),
		Items:     items,
		Summary:   []models.ActionSummary{},
		Actions:   []models.ActionRecord{},
	}
	s.sessions[session.SessionId] = session
	if body.ScheduleId != "" {
		for i := range s.schedules {
			if s.schedules[i].ScheduleId == body.ScheduleId {
				sessionId := session.SessionId
				s.schedules[i].InspectionSessionId = &sessionId
			}
		}
	}
	s.logger.WithFields(logrus.Fields{"sessionId": session.SessionId, "slotId": slot.SlotId}).Info("fixture: session started")
	c.JSON(http.StatusCreated, session)
}

func (s *Server) createActions(c *gin.Context) {
	var body struct {
		Actions []models.ActionRequest `json:"actions"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || len(body.Actions) == 0 {
		apiError(c, http.StatusBadRequest, "INVALID_REQUEST", "actions batch is required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[c.Param("id")]
	if !ok {
		apiError(c, http.StatusNotFound, "SESSION_NOT_FOUND", "no such inspection session")
		return
	}
	if session.Status != models.SessionStatusInProgress {
		apiError(c, http.StatusConflict, "SESSION_NOT_ACTIVE", "session is no longer in progress")
		return
	}

	correlationId := c.GetHeader("X-Correlation-Id")
	for _, request := range body.Actions {
		if !request.Action.Valid() {
			apiError(c, http.StatusUnprocessableEntity, "INVALID_ACTION", "unknown action type")
			return
		}
		record := models.ActionRecord{
			ActionId:      s.nextActionId,
			ActionType:    request.Action,
			ItemId:        request.ItemId,
			BundleId:      request.BundleId,
			Note:          request.Note,
			CorrelationId: correlationId,
			RecordedAt:    time.Now().UTC(),
		}
		s.nextActionId++
		for _, item := range s.snapshotTargets(session, request) {
			s.nextSnapshotId++
			name := item.Name
			expires := item.ExpiryDate
			record.Items = append(record.Items, models.ActionItemSnapshot{
				Id:              s.nextSnapshotId,
				FridgeItemId:    &item.UnitId,
				SnapshotName:    &name,
				SnapshotExpires: &expires,
			})
		}
		if request.Action == models.ActionTypeDisposeExpired {
			reason := "expired item disposed during inspection"
			record.Penalties = append(record.Penalties, models.PenaltyRecord{
				Id:       uuid.NewString(),
				Points:   expiredDisposalPenaltyPoints,
				Reason:   &reason,
				IssuedAt: time.Now().UTC(),
			})
		}
		session.Actions = append(session.Actions, record)
	}
	recomputeSummary(session)
	c.JSON(http.StatusOK, session)
}

// snapshotTargets resolves the items an action covers: one unit, or every
// unit of a bundle.
func (s *Server) snapshotTargets(session *models.InspectionSession, request models.ActionRequest) []models.InspectionItem {
	var targets []models.InspectionItem
	for _, item := range session.Items {
		if request.ItemId != nil && item.UnitId == *request.ItemId {
			targets = append(targets, item)
		} else if request.ItemId == nil && request.BundleId != nil && item.BundleId == *request.BundleId {
			targets = append(targets, item)
		}
	}
	return targets
}

func (s *Server) deleteAction(c *gin.Context) {
	actionId, err := strconv.Atoi(c.Param("actionId"))
	if err != nil {
		apiError(c, http.StatusBadRequest, "INVALID_REQUEST", "actionId must be numeric")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[c.Param("id")]
	if !ok {
		apiError(c, http.StatusNotFound, "SESSION_NOT_FOUND", "no such inspection session")
		return
	}
	if session.Status != models.SessionStatusInProgress {
		apiError(c, http.StatusConflict, "SESSION_NOT_ACTIVE", "session is no longer in progress")
		return
	}
	idx := -1
	for i, action := range session.Actions {
		if action.ActionId == actionId {
			idx = i
			break
		}
	}
	if idx < 0 {
		apiError(c, http.StatusNotFound, "ACTION_NOT_FOUND", "no such action on this session")
		return
	}
	session.Actions = append(session.Actions[:idx], session.Actions[idx+1:]...)
	recomputeSummary(session)
	c.JSON(http.StatusOK, session)
}

func (s *Server) submitSession(c *gin.Context) {
	var body struct {
		Notes string `json:"notes"`
	}
	_ = c.ShouldBindJSON(&body)

	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[c.Param("id")]
	if !ok {
		apiError(c, http.StatusNotFound, "SESSION_NOT_FOUND", "no such inspection session")
		return
	}
	if session.Status != models.SessionStatusInProgress {
		apiError(c, http.StatusConflict, "SESSION_NOT_ACTIVE", "session is no longer in progress")
		return
	}
	if remaining := remainingItemCount(session); remaining > 0 {
		apiError(c, http.StatusUnprocessableEntity, "ITEMS_REMAINING", strconv.Itoa(remaining)+" items still need an action")
		return
	}
	now := time.Now().UTC()
	session.Status = models.SessionStatusSubmitted
	session.EndedAt = &now
	if body.Notes != "" {
		notes := body.Notes
		session.Notes = &notes
	}
	for i := range s.schedules {
		if s.schedules[i].InspectionSessionId != nil && *s.schedules[i].InspectionSessionId == session.SessionId {
			s.schedules[i].Status = models.ScheduleStatusCompleted
			s.schedules[i].CompletedAt = &now
		}
	}
	c.JSON(http.StatusOK, session)
}

func (s *Server) cancelSession(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[c.Param("id")]
	if !ok {
		apiError(c, http.StatusNotFound, "SESSION_NOT_FOUND", "no such inspection session")
		return
	}
	if session.Status != models.SessionStatusInProgress {
		apiError(c, http.StatusConflict, "SESSION_NOT_ACTIVE", "session is no longer in progress")
		return
	}
	now := time.Now().UTC()
	session.Status = models.SessionStatusCanceled
	session.EndedAt = &now
	c.Status(http.StatusNoContent)
}

func (s *Server) listSchedules(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := c.Query("status")
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}
	items := make([]models.InspectionSchedule, 0, len(s.schedules))
	for _, schedule := range s.schedules {
		if status != "" && string(schedule.Status) != status {
			continue
		}
		items = append(items, schedule)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ScheduledAt.Before(items[j].ScheduledAt) })
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (s *Server) nextSchedule(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var next *models.InspectionSchedule
	for i := range s.schedules {
		if s.schedules[i].Status != models.ScheduleStatusScheduled {
			continue
		}
		if next == nil || s.schedules[i].ScheduledAt.Before(next.ScheduledAt) {
			next = &s.schedules[i]
		}
	}
	if next == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, next)
}

func (s *Server) previewReallocation(c *gin.Context) {
	floor, _ := strconv.Atoi(c.Query("floor"))
	if floor == 0 {
		apiError(c, http.StatusBadRequest, "INVALID_REQUEST", "floor is required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var floorSlots []models.Slot
	for _, slot := range s.slots {
		if slot.FloorNo == floor {
			floorSlots = append(floorSlots, *slot)
		}
	}
	sort.Slice(floorSlots, func(i, j int) bool { return floorSlots[i].SlotIndex < floorSlots[j].SlotIndex })

	var rooms []string
	for _, room := range s.rooms {
		if room.FloorNo == floor {
			rooms = append(rooms, room.RoomId)
		}
	}

	plan := models.ReallocationPlan{Floor: floor}
	var usable []models.Slot
	for _, slot := range floorSlots {
		if slot.ResourceStatus == models.ResourceStatusActive && !slot.Locked {
			usable = append(usable, slot)
		}
	}
	if len(usable) > 0 {
		buckets := make([][]string, len(usable))
		for i, room := range rooms {
			buckets[i%len(usable)] = append(buckets[i%len(usable)], room)
		}
		for i, slot := range usable {
			plan.Assignments = append(plan.Assignments, models.CompartmentAssignment{
				CompartmentId: slot.SlotId,
				RoomIds:       buckets[i],
			})
		}
	}

	var active []models.InspectionSession
	for _, session := range s.sessions {
		if session.Status == models.SessionStatusInProgress {
			active = append(active, *session)
		}
	}
	preview := models.ReallocationPreview{
		Floor:       floor,
		Assignments: plan.Assignments,
		Warnings:    models.EvaluateReallocationPlan(floorSlots, active, plan),
	}
	c.JSON(http.StatusOK, preview)
}

func (s *Server) applyAssignment(c *gin.Context) {
	var body struct {
		Floor   int      `json:"floor"`
		RoomIds []string `json:"roomIds"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		apiError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid assignment payload")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	compartmentId := c.Param("id")
	slot, ok := s.slots[compartmentId]
	if !ok {
		apiError(c, http.StatusNotFound, "COMPARTMENT_NOT_FOUND", "no such compartment")
		return
	}
	if slot.Locked {
		apiError(c, http.StatusConflict, "COMPARTMENT_LOCKED", "compartment is locked")
		return
	}
	s.assignments[compartmentId] = body.RoomIds
	c.JSON(http.StatusOK, gin.H{"createdAssignments": len(body.RoomIds)})
}

// recomputeSummary rebuilds the authoritative per-type counts from the
// surviving actions. Bundle actions count once per covered unit.
func recomputeSummary(session *models.InspectionSession) {
	counts := map[models.ActionType]int{}
	for _, action := range session.Actions {
		n := len(action.Items)
		if n == 0 {
			n = 1
		}
		counts[action.ActionType] += n
	}
	summary := make([]models.ActionSummary, 0, len(counts))
	for _, actionType := range models.AllActionTypes() {
		if counts[actionType] > 0 {
			summary = append(summary, models.ActionSummary{Action: actionType, Count: counts[actionType]})
		}
	}
	session.Summary = summary
}

func remainingItemCount(session *models.InspectionSession) int {
	covered := map[string]bool{}
	for _, action := range session.Actions {
		for _, snapshot := range action.Items {
			if snapshot.FridgeItemId != nil {
				covered[*snapshot.FridgeItemId] = true
			}
		}
	}
	remaining := 0
	for _, item := range session.Items {
		if !covered[item.UnitId] {
			remaining++
		}
	}
	return remaining
}
