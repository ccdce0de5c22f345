package battle

import (
	"context"
	"log/slog"
	"time"

	"quiz-battle-service/internal/domain"
)

// MaxParticipants caps how many players a single room accepts.
const MaxParticipants = 30

// ResultsSink receives the final ranked results exactly once per battle.
type ResultsSink interface {
	RecordBattleResult(ctx context.Context, roomID string, results []domain.Result) error
}

// Role distinguishes playing sessions from read-only ones.
type Role int

const (
	RoleParticipant Role = iota
	RoleSpectator
)

// Subscriber is one session's view of a room's broadcast stream. The room
// actor closes the channel when the room expires.
type Subscriber struct {
	role Role
	ch   chan domain.Event
}

// Events returns the broadcast stream for this subscriber.
func (s *Subscriber) Events() <-chan domain.Event { return s.ch }

// Options configures a room actor.
type Options struct {
	Retention time.Duration
	Scoring   ScoringPolicy
	Sink      ResultsSink
	Logger    *slog.Logger
	Clock     func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Retention <= 0 {
		o.Retention = 5 * time.Minute
	}
	if o.Scoring == (ScoringPolicy{}) {
		o.Scoring = DefaultScoringPolicy()
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	return o
}

// Room owns one battle session's authoritative state. All mutation happens
// on the actor goroutine (run), which consumes commands one at a time, so
// no two events for the same room ever interleave.
type Room struct {
	id      string
	opts    Options
	cmds    chan any
	done    chan struct{}
	onClose func()

	// Everything below is owned by the run goroutine.
	status         domain.RoomStatus
	chapter        string
	creatorID      string
	questions      []domain.Question
	participants   map[string]*domain.Participant
	sessions       map[string]*Subscriber
	joinOrder      []string
	spectatorCount int
	subs           map[*Subscriber]struct{}
	createdAt      time.Time
	startedAt      time.Time
	endedAt        time.Time
	results        []domain.Result
}

func newRoom(id string, opts Options, onClose func()) *Room {
	opts = opts.withDefaults()
	return &Room{
		id:           id,
		opts:         opts,
		cmds:         make(chan any),
		done:         make(chan struct{}),
		onClose:      onClose,
		status:       domain.StatusWaiting,
		participants: make(map[string]*domain.Participant),
		sessions:     make(map[string]*Subscriber),
		subs:         make(map[*Subscriber]struct{}),
		createdAt:    opts.Clock(),
	}
}

// ID returns the room identifier.
func (r *Room) ID() string { return r.id }

// commands processed by the actor loop

type joinCmd struct {
	userID   string
	username string
	chapter  string
	reply    chan joinReply
}

type joinReply struct {
	snapshot domain.RoomSnapshot
	sub      *Subscriber
	err      error
}

type leaveCmd struct {
	userID string
	sub    *Subscriber
}

type readyCmd struct {
	userID  string
	isReady bool
	reply   chan error
}

type startCmd struct {
	requesterID string
	chapter     string
	questions   []domain.Question
	reply       chan error
}

type answerCmd struct {
	userID        string
	questionIndex int
	selectedIndex int
	timeSpentMs   int64
	reply         chan error
}

type chatCmd struct {
	username string
	message  string
	reply    chan error
}

type spectateCmd struct {
	reply chan joinReply
}

type detachCmd struct {
	sub *Subscriber
}

type forceEndCmd struct {
	reason string
	reply  chan error
}

type expireCmd struct{}

// Join registers a new participant or reconnects an existing one, returning
// the full room snapshot and the broadcast subscription.
func (r *Room) Join(userID, username, chapter string) (domain.RoomSnapshot, *Subscriber, error) {
	reply := make(chan joinReply, 1)
	if err := r.send(joinCmd{userID: userID, username: username, chapter: chapter, reply: reply}); err != nil {
		return domain.RoomSnapshot{}, nil, err
	}
	res := <-reply
	return res.snapshot, res.sub, res.err
}

// Leave detaches a participant's session. In WAITING the participant is
// removed; in ACTIVE it only flips connected=false and keeps the
// participant in the ranking.
func (r *Room) Leave(userID string, sub *Subscriber) {
	_ = r.send(leaveCmd{userID: userID, sub: sub})
}

// SetReady toggles a participant's lobby ready flag.
func (r *Room) SetReady(userID string, isReady bool) error {
	reply := make(chan error, 1)
	if err := r.send(readyCmd{userID: userID, isReady: isReady, reply: reply}); err != nil {
		return err
	}
	return <-reply
}

// Start attaches the question set and transitions WAITING -> ACTIVE. Only
// the creator may start, and only with at least two all-ready participants.
func (r *Room) Start(requesterID, chapter string, questions []domain.Question) error {
	reply := make(chan error, 1)
	if err := r.send(startCmd{requesterID: requesterID, chapter: chapter, questions: questions, reply: reply}); err != nil {
		return err
	}
	return <-reply
}

// SubmitAnswer scores one answer for the participant's current question.
func (r *Room) SubmitAnswer(userID string, questionIndex, selectedIndex int, timeSpentMs int64) error {
	reply := make(chan error, 1)
	cmd := answerCmd{
		userID:        userID,
		questionIndex: questionIndex,
		selectedIndex: selectedIndex,
		timeSpentMs:   timeSpentMs,
		reply:         reply,
	}
	if err := r.send(cmd); err != nil {
		return err
	}
	return <-reply
}

// Chat relays a message to all participants (spectators do not receive chat).
func (r *Room) Chat(username, message string) error {
	reply := make(chan error, 1)
	if err := r.send(chatCmd{username: username, message: message, reply: reply}); err != nil {
		return err
	}
	return <-reply
}

// Spectate attaches a read-only session. Allowed in every state before
// expiry, including ENDED for late viewers of the final results.
func (r *Room) Spectate() (domain.RoomSnapshot, *Subscriber, error) {
	reply := make(chan joinReply, 1)
	if err := r.send(spectateCmd{reply: reply}); err != nil {
		return domain.RoomSnapshot{}, nil, err
	}
	res := <-reply
	return res.snapshot, res.sub, res.err
}

// Detach drops a subscription without touching participant state. Used for
// spectator teardown.
func (r *Room) Detach(sub *Subscriber) {
	_ = r.send(detachCmd{sub: sub})
}

// ForceEnd short-circuits the room to ENDED with whatever partial ranking
// currently exists.
func (r *Room) ForceEnd(reason string) error {
	reply := make(chan error, 1)
	if err := r.send(forceEndCmd{reason: reason, reply: reply}); err != nil {
		return err
	}
	return <-reply
}

func (r *Room) send(cmd any) error {
	select {
	case r.cmds <- cmd:
		return nil
	case <-r.done:
		return domain.ErrRoomClosed
	}
}

// run is the actor loop. It exits when the room expires.
func (r *Room) run() {
	for cmd := range r.cmds {
		switch c := cmd.(type) {
		case joinCmd:
			c.reply <- r.handleJoin(c)
		case leaveCmd:
			r.handleLeave(c)
		case readyCmd:
			c.reply <- r.handleReady(c)
		case startCmd:
			c.reply <- r.handleStart(c)
		case answerCmd:
			c.reply <- r.handleAnswer(c)
		case chatCmd:
			c.reply <- r.handleChat(c)
		case spectateCmd:
			c.reply <- r.handleSpectate()
		case detachCmd:
			r.handleDetach(c.sub)
		case forceEndCmd:
			c.reply <- r.handleForceEnd(c.reason)
		case expireCmd:
			r.terminate()
		}
		if r.status == domain.StatusExpired {
			return
		}
	}
}

func (r *Room) handleJoin(c joinCmd) joinReply {
	if p, ok := r.participants[c.userID]; ok {
		// Reconnect by userId resumes the existing record instead of
		// creating a duplicate. The previous session, if still attached,
		// is kicked so its teardown cannot touch the participant.
		p.Connected = true
		r.dropSub(r.sessions[c.userID])
		sub := r.subscribe(RoleParticipant)
		r.sessions[c.userID] = sub
		r.broadcast(domain.UserJoined{UserID: p.UserID, Username: p.Username}, sub)
		r.opts.Logger.Info("participant reconnected", "room", r.id, "user", c.userID)
		return joinReply{snapshot: r.snapshot(), sub: sub}
	}

	switch r.status {
	case domain.StatusEnded, domain.StatusExpired:
		return joinReply{err: domain.ErrRoomClosed}
	case domain.StatusActive:
		return joinReply{err: domain.ErrInvalidTransition}
	}
	if len(r.participants) >= MaxParticipants {
		return joinReply{err: domain.ErrRoomFull}
	}

	if len(r.participants) == 0 {
		r.creatorID = c.userID
	}
	if r.chapter == "" {
		r.chapter = c.chapter
	}
	r.participants[c.userID] = &domain.Participant{
		UserID:            c.userID,
		Username:          c.username,
		Connected:         true,
		AnsweredQuestions: make(map[int]struct{}),
	}
	r.joinOrder = append(r.joinOrder, c.userID)

	sub := r.subscribe(RoleParticipant)
	r.sessions[c.userID] = sub
	r.broadcast(domain.UserJoined{UserID: c.userID, Username: c.username}, sub)
	r.opts.Logger.Info("participant joined", "room", r.id, "user", c.userID, "participants", len(r.participants))
	return joinReply{snapshot: r.snapshot(), sub: sub}
}

func (r *Room) handleLeave(c leaveCmd) {
	r.dropSub(c.sub)

	// Only the participant's current session may mutate the record. A stale
	// connection tearing down after a reconnect drops its own sub and
	// nothing else.
	if r.sessions[c.userID] != c.sub {
		return
	}
	delete(r.sessions, c.userID)

	p, ok := r.participants[c.userID]
	if !ok {
		return
	}
	switch r.status {
	case domain.StatusWaiting:
		delete(r.participants, c.userID)
		for i, id := range r.joinOrder {
			if id == c.userID {
				r.joinOrder = append(r.joinOrder[:i], r.joinOrder[i+1:]...)
				break
			}
		}
		if c.userID == r.creatorID && len(r.joinOrder) > 0 {
			r.creatorID = r.joinOrder[0]
		}
		r.broadcast(domain.UserLeft{UserID: p.UserID, Username: p.Username}, nil)
		r.opts.Logger.Info("participant left", "room", r.id, "user", c.userID)
		if len(r.participants) == 0 {
			r.terminate()
		}
	default:
		// After the battle starts the participant stays in the ranking,
		// frozen at the last known progress.
		p.Connected = false
		r.broadcast(domain.UserLeft{UserID: p.UserID, Username: p.Username}, nil)
		r.opts.Logger.Info("participant disconnected", "room", r.id, "user", c.userID)
	}
}

func (r *Room) handleReady(c readyCmd) error {
	if r.status != domain.StatusWaiting {
		return domain.ErrInvalidTransition
	}
	p, ok := r.participants[c.userID]
	if !ok {
		return domain.ErrForbidden
	}
	p.IsReady = c.isReady
	r.broadcast(domain.UserReadyStatus{UserID: c.userID, IsReady: c.isReady}, nil)
	return nil
}

func (r *Room) handleStart(c startCmd) error {
	if r.status != domain.StatusWaiting {
		return domain.ErrInvalidTransition
	}
	if c.requesterID != r.creatorID {
		return domain.ErrForbidden
	}
	if len(r.participants) < 2 || len(c.questions) == 0 {
		return domain.ErrInvalidTransition
	}
	for _, p := range r.participants {
		if !p.IsReady {
			return domain.ErrInvalidTransition
		}
	}

	r.questions = c.questions
	if c.chapter != "" {
		r.chapter = c.chapter
	}
	r.status = domain.StatusActive
	r.startedAt = r.opts.Clock()
	// The state machine guarantees every session observes battleStarted
	// before any answer for this question set is accepted: the actor will
	// not process an answerCmd until this broadcast is queued.
	r.broadcast(domain.BattleStarted{Questions: r.questions}, nil)
	r.opts.Logger.Info("battle started", "room", r.id, "questions", len(r.questions), "participants", len(r.participants))
	return nil
}

func (r *Room) handleAnswer(c answerCmd) error {
	if r.status != domain.StatusActive {
		return domain.ErrInvalidTransition
	}
	p, ok := r.participants[c.userID]
	if !ok {
		return domain.ErrForbidden
	}
	if _, answered := p.AnsweredQuestions[c.questionIndex]; answered {
		return domain.ErrDuplicateAnswer
	}
	if c.questionIndex != p.CurrentQuestionIndex || c.questionIndex >= len(r.questions) {
		return domain.ErrInvalidTransition
	}

	points := r.opts.Scoring.Score(r.questions[c.questionIndex], c.selectedIndex, c.timeSpentMs)
	p.AnsweredQuestions[c.questionIndex] = struct{}{}
	p.Score += points
	if points > 0 {
		p.CorrectAnswers++
	}
	if c.timeSpentMs > 0 {
		p.TotalTimeMs += c.timeSpentMs
	}
	p.CurrentQuestionIndex++

	r.broadcast(domain.UpdateProgress{
		UserID:               p.UserID,
		CurrentQuestionIndex: p.CurrentQuestionIndex,
		Score:                p.Score,
	}, nil)
	if p.CurrentQuestionIndex == len(r.questions) {
		r.broadcast(domain.UserFinished{UserID: p.UserID, Username: p.Username}, nil)
	}
	if r.allFinished() {
		r.endBattle("completed")
	}
	return nil
}

func (r *Room) handleChat(c chatCmd) error {
	if r.status != domain.StatusWaiting && r.status != domain.StatusActive {
		return domain.ErrInvalidTransition
	}
	msg := domain.ChatMessage{Username: c.username, Message: c.message}
	for sub := range r.subs {
		if sub.role != RoleParticipant {
			continue
		}
		r.deliver(sub, msg)
	}
	return nil
}

func (r *Room) handleSpectate() joinReply {
	r.spectatorCount++
	sub := r.subscribe(RoleSpectator)
	return joinReply{snapshot: r.snapshot(), sub: sub}
}

func (r *Room) handleDetach(sub *Subscriber) {
	if _, ok := r.subs[sub]; ok && sub.role == RoleSpectator {
		r.spectatorCount--
	}
	r.dropSub(sub)
}

func (r *Room) handleForceEnd(reason string) error {
	if r.status != domain.StatusWaiting && r.status != domain.StatusActive {
		return domain.ErrInvalidTransition
	}
	r.endBattle(reason)
	return nil
}

// allFinished is the completion condition: every participant, connected or
// not, has advanced past the last question.
func (r *Room) allFinished() bool {
	if len(r.participants) == 0 || len(r.questions) == 0 {
		return false
	}
	for _, p := range r.participants {
		if p.CurrentQuestionIndex < len(r.questions) {
			return false
		}
	}
	return true
}

func (r *Room) endBattle(reason string) {
	r.status = domain.StatusEnded
	r.endedAt = r.opts.Clock()
	ordered := make([]*domain.Participant, 0, len(r.participants))
	for _, id := range r.joinOrder {
		if p, ok := r.participants[id]; ok {
			ordered = append(ordered, p)
		}
	}
	r.results = Rank(ordered, len(r.questions))
	r.broadcast(domain.BattleEnded{Results: r.results, Reason: reason}, nil)
	r.opts.Logger.Info("battle ended", "room", r.id, "reason", reason, "participants", len(r.results))

	// Persistence must not block the actor; a slow sink only delays the
	// leaderboard, never the room.
	if r.opts.Sink != nil {
		results := r.results
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := r.opts.Sink.RecordBattleResult(ctx, r.id, results); err != nil {
				r.opts.Logger.Error("record battle result failed", "room", r.id, "error", err)
			}
		}()
	}

	time.AfterFunc(r.opts.Retention, func() {
		_ = r.send(expireCmd{})
	})
}

// terminate transitions to EXPIRED and shuts the actor down. The registry
// entry is removed via onClose.
func (r *Room) terminate() {
	r.status = domain.StatusExpired
	close(r.done)
	for sub := range r.subs {
		close(sub.ch)
		delete(r.subs, sub)
	}
	if r.onClose != nil {
		r.onClose()
	}
	r.opts.Logger.Info("room expired", "room", r.id)
}

func (r *Room) subscribe(role Role) *Subscriber {
	sub := &Subscriber{role: role, ch: make(chan domain.Event, 32)}
	r.subs[sub] = struct{}{}
	return sub
}

func (r *Room) dropSub(sub *Subscriber) {
	if sub == nil {
		return
	}
	if _, ok := r.subs[sub]; ok {
		delete(r.subs, sub)
		close(sub.ch)
	}
}

func (r *Room) broadcast(ev domain.Event, except *Subscriber) {
	for sub := range r.subs {
		if sub == except {
			continue
		}
		r.deliver(sub, ev)
	}
}

// deliver never blocks the actor: when a subscriber's buffer is full the
// oldest pending event is dropped in favor of the new one.
func (r *Room) deliver(sub *Subscriber, ev domain.Event) {
	select {
	case sub.ch <- ev:
	default:
		select {
		case <-sub.ch:
		default:
		}
		select {
		case sub.ch <- ev:
		default:
		}
	}
}

func (r *Room) snapshot() domain.RoomSnapshot {
	snap := domain.RoomSnapshot{
		ID:             r.id,
		Status:         r.status,
		Chapter:        r.chapter,
		CreatorID:      r.creatorID,
		SpectatorCount: r.spectatorCount,
		CreatedAt:      r.createdAt,
	}
	for _, id := range r.joinOrder {
		if p, ok := r.participants[id]; ok {
			view := *p
			// The answered-set stays actor-owned; snapshots only carry the
			// serializable view.
			view.AnsweredQuestions = nil
			snap.Participants = append(snap.Participants, view)
		}
	}
	if !r.startedAt.IsZero() {
		t := r.startedAt
		snap.StartedAt = &t
		snap.Questions = r.questions
	}
	if !r.endedAt.IsZero() {
		t := r.endedAt
		snap.EndedAt = &t
		snap.Results = r.results
	}
	return snap
}
