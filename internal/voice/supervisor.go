package voice

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Timings — все задержки жизненного цикла.
type Timings struct {
	ReadyTimeout  time.Duration // ожидание ready при массовом заходе
	RecoveryWait  time.Duration // сколько ждём, пока платформа сама поднимет сессию
	Cooldown      time.Duration // пауза перед свежим переподключением
	FrameInterval time.Duration
}

func DefaultTimings() Timings {
	return Timings{
		ReadyTimeout:  15 * time.Second,
		RecoveryWait:  5 * time.Second,
		Cooldown:      2 * time.Second,
		FrameInterval: DefaultFrameInterval,
	}
}

// SessionInfo — снимок сессии.
type SessionInfo struct {
	ID        string
	GuildID   string
	ChannelID string
	Phase     Phase
	Retries   int
	StartedAt time.Time
}

// Session — состояние одной попытки подключения. Трогает её только Supervisor.
type Session struct {
	id        string
	target    Target
	phase     Phase
	retries   int
	startedAt time.Time

	link    Link
	emitter *Emitter

	ctx    context.Context
	cancel context.CancelFunc
	drops  int // номер текущего обрыва, чтобы старое ожидание не сработало на новый
}

func (sess *Session) info() SessionInfo {
	return SessionInfo{
		ID:        sess.id,
		GuildID:   sess.target.GuildID,
		ChannelID: sess.target.ChannelID,
		Phase:     sess.phase,
		Retries:   sess.retries,
		StartedAt: sess.startedAt,
	}
}

type pendingRecovery struct {
	ctx    context.Context
	cancel context.CancelFunc
}

type Option func(*Supervisor)

// WithSleep подменяет ожидание (для тестов).
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(s *Supervisor) { s.sleep = fn }
}

// Supervisor ведёт голосовые сессии одного бота, по одной на гильдию.
type Supervisor struct {
	name    string
	dialer  Dialer
	timings Timings
	log     *slog.Logger
	sleep   func(ctx context.Context, d time.Duration) error

	// "События" вызываются под внутренней блокировкой, обратно в Supervisor не ходить.
	OnPhase    func(info SessionInfo, from Phase)
	OnRecovery func(info SessionInfo)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	closed   bool
	sessions map[string]*Session
	tracked  map[string]string
	pending  map[string]*pendingRecovery
	closing  []closingLink // закрываются в unlock, уже без s.mu
}

type closingLink struct {
	session string
	link    Link
}

func NewSupervisor(name string, d Dialer, t Timings, log *slog.Logger, opts ...Option) *Supervisor {
	if log == nil {
		log = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Supervisor{
		name:     name,
		dialer:   d,
		timings:  t,
		log:      log,
		sleep:    sleepCtx,
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[string]*Session),
		tracked:  make(map[string]string),
		pending:  make(map[string]*pendingRecovery),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Supervisor) Name() string { return s.name }

// Connect создаёт сессию в фазе connecting и сразу возвращается;
// подтверждение от платформы обрабатывается асинхронно.
func (s *Supervisor) Connect(target Target) (SessionInfo, error) {
	if target.ChannelID == "" {
		return SessionInfo{}, ErrNoTargetChannel
	}
	s.mu.Lock()
	defer s.unlock()

	if _, ok := s.sessions[target.GuildID]; ok {
		return SessionInfo{}, ErrAlreadyConnected
	}
	s.cancelRecoveryLocked(target.GuildID)

	sess, err := s.openLocked(target, 0)
	if err != nil {
		return SessionInfo{}, err
	}
	s.goLocked(func() { _ = s.establish(context.Background(), sess, 0) })
	return sess.info(), nil
}

// Move сносит текущую сессию и подключается к новому каналу.
func (s *Supervisor) Move(target Target) (SessionInfo, error) {
	if target.ChannelID == "" {
		return SessionInfo{}, ErrNoTargetChannel
	}
	s.mu.Lock()
	defer s.unlock()

	sess := s.sessions[target.GuildID]
	if sess == nil {
		return SessionInfo{}, ErrNotConnected
	}
	s.destroyLocked(sess, EventLeave)
	s.cancelRecoveryLocked(target.GuildID)

	next, err := s.openLocked(target, 0)
	if err != nil {
		return SessionInfo{}, err
	}
	s.goLocked(func() { _ = s.establish(context.Background(), next, 0) })
	return next.info(), nil
}

// JoinAndWait — заход для массовой операции: ждёт ready не дольше timeout.
// По таймауту полуоткрытое соединение рвётся, сессия выбрасывается,
// возвращается ErrConnectTimeout.
func (s *Supervisor) JoinAndWait(ctx context.Context, target Target, timeout time.Duration) error {
	if target.ChannelID == "" {
		return ErrNoTargetChannel
	}
	s.mu.Lock()
	if _, ok := s.sessions[target.GuildID]; ok {
		s.unlock()
		return ErrAlreadyConnected
	}
	s.cancelRecoveryLocked(target.GuildID)
	sess, err := s.openLocked(target, 0)
	if err != nil {
		s.unlock()
		return err
	}
	s.wg.Add(1)
	s.unlock()

	defer s.wg.Done()
	return s.establish(ctx, sess, timeout)
}

// Disconnect глушит тишину, рвёт соединение и забывает канал.
// Повторный вызов вернёт ErrNotConnected и ничего не тронет.
func (s *Supervisor) Disconnect(guildID string) error {
	s.mu.Lock()
	defer s.unlock()

	s.cancelRecoveryLocked(guildID)
	sess := s.sessions[guildID]
	if sess == nil {
		return ErrNotConnected
	}
	s.destroyLocked(sess, EventLeave)
	s.log.Info("left voice", "session", sess.id, "guild", guildID)
	return nil
}

// Reset — принудительная очистка в любой фазе, никогда не падает.
func (s *Supervisor) Reset(guildID string) {
	s.mu.Lock()
	defer s.unlock()

	s.cancelRecoveryLocked(guildID)
	if sess := s.sessions[guildID]; sess != nil {
		s.destroyLocked(sess, EventLeave)
		s.log.Info("voice state reset", "session", sess.id, "guild", guildID)
	}
	delete(s.tracked, guildID)
}

// Shutdown сносит все сессии и ждёт фоновые горутины.
func (s *Supervisor) Shutdown() {
	s.mu.Lock()
	s.closed = true
	s.cancel()
	for guild, sess := range s.sessions {
		s.destroyLocked(sess, EventLeave)
		s.cancelRecoveryLocked(guild)
	}
	s.unlock()
	s.wg.Wait()
}

// Session возвращает снимок сессии в гильдии.
func (s *Supervisor) Session(guildID string) (SessionInfo, bool) {
	s.mu.Lock()
	defer s.unlock()
	sess, ok := s.sessions[guildID]
	if !ok {
		return SessionInfo{}, false
	}
	return sess.info(), true
}

// Sessions — снимки всех сессий, по возрастанию guild id.
func (s *Supervisor) Sessions() []SessionInfo {
	s.mu.Lock()
	defer s.unlock()
	out := make([]SessionInfo, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess.info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GuildID < out[j].GuildID })
	return out
}

// Tracked — канал, в котором бот, по нашему мнению, сидит ("" если нигде).
func (s *Supervisor) Tracked(guildID string) string {
	s.mu.Lock()
	defer s.unlock()
	return s.tracked[guildID]
}

// Streaming — играет ли тишина в гильдии.
func (s *Supervisor) Streaming(guildID string) bool {
	s.mu.Lock()
	defer s.unlock()
	sess := s.sessions[guildID]
	return sess != nil && sess.emitter.Active()
}

// RecoveryPending — ждём ли кулдауна перед переподключением.
func (s *Supervisor) RecoveryPending(guildID string) bool {
	s.mu.Lock()
	defer s.unlock()
	return s.pending[guildID] != nil
}

// ========================= internals =========================

func (s *Supervisor) openLocked(target Target, retries int) (*Session, error) {
	if s.closed {
		return nil, &TransportError{Op: "voice dial", Err: errors.New("supervisor is shut down")}
	}
	ctx, cancel := context.WithCancel(s.ctx)
	sess := &Session{
		id:        uuid.NewString(),
		target:    target,
		phase:     PhaseIdle,
		retries:   retries,
		startedAt: time.Now(),
		ctx:       ctx,
		cancel:    cancel,
	}
	s.applyLocked(sess, EventJoin)

	link, err := s.dialer.Dial(ctx, target.GuildID, target.ChannelID)
	if err != nil {
		cancel()
		s.applyLocked(sess, EventConnectFailed)
		var te *TransportError
		if !errors.As(err, &te) {
			err = &TransportError{Op: "voice dial", Err: err}
		}
		s.log.Warn("voice dial failed", "guild", target.GuildID, "channel", target.ChannelID, "err", err)
		return nil, err
	}

	sess.link = link
	sess.emitter = NewEmitter(s.timings.FrameInterval)
	sess.emitter.OnError = func(err error) {
		s.log.Warn("silence send failed", "session", sess.id, "err", err)
	}
	s.sessions[target.GuildID] = sess

	s.log.Info("voice connecting", "session", sess.id, "guild", target.GuildID,
		"channel", target.ChannelID, "retry", retries)
	return sess, nil
}

// establish ждёт подтверждения от платформы. timeout <= 0 значит без ограничения
// (но ожидание всё равно прерывается, если сессию снесли).
func (s *Supervisor) establish(ctx context.Context, sess *Session, timeout time.Duration) error {
	waitCtx, cancel := context.WithCancel(sess.ctx)
	if timeout > 0 {
		cancel()
		waitCtx, cancel = context.WithTimeout(sess.ctx, timeout)
	}
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := sess.link.WaitReady(waitCtx)

	s.mu.Lock()
	defer s.unlock()

	if !s.currentLocked(sess) {
		return errSuperseded
	}
	if err == nil && waitCtx.Err() == nil {
		s.readyLocked(sess)
		s.goLocked(func() { s.watch(sess) })
		return nil
	}

	switch {
	case ctx.Err() != nil:
		err = ctx.Err()
	case errors.Is(waitCtx.Err(), context.DeadlineExceeded):
		err = ErrConnectTimeout
	default:
		var te *TransportError
		if err == nil {
			err = waitCtx.Err()
		}
		if !errors.As(err, &te) {
			err = &TransportError{Op: "voice ready", Err: err}
		}
	}
	s.log.Warn("voice connect failed", "session", sess.id, "guild", sess.target.GuildID, "err", err)
	s.destroyLocked(sess, EventConnectFailed)
	return err
}

func (s *Supervisor) readyLocked(sess *Session) {
	s.applyLocked(sess, EventReady)
	s.tracked[sess.target.GuildID] = sess.target.ChannelID
	sess.emitter.Start(sess.link)
	s.log.Info("voice ready, starting silence loop", "session", sess.id,
		"guild", sess.target.GuildID, "channel", sess.target.ChannelID)
}

// watch слушает события соединения, пока сессия жива.
func (s *Supervisor) watch(sess *Session) {
	events := sess.link.Events()
	for {
		select {
		case <-sess.ctx.Done():
			return
		case ev := <-events:
			s.handleLinkEvent(sess, ev)
		}
	}
}

func (s *Supervisor) handleLinkEvent(sess *Session, ev LinkEvent) {
	s.mu.Lock()
	defer s.unlock()
	if !s.currentLocked(sess) {
		return
	}

	switch ev {
	case LinkDropped:
		if _, err := Transition(sess.phase, EventDrop); err != nil {
			return
		}
		// пока не подключены, тишину не шлём
		sess.emitter.Stop()
		s.applyLocked(sess, EventDrop)
		delete(s.tracked, sess.target.GuildID)
		sess.drops++
		seq := sess.drops
		s.log.Warn("voice disconnected, waiting for recovery", "session", sess.id,
			"guild", sess.target.GuildID, "wait", s.timings.RecoveryWait)
		s.goLocked(func() { s.awaitRecovery(sess, seq) })

	case LinkSignalling:
		s.tryApplyLocked(sess, EventSignalling)

	case LinkReconnecting:
		s.tryApplyLocked(sess, EventReconnecting)

	case LinkReady:
		// платформа может сразу вернуть ready, минуя промежуточные состояния
		if sess.phase == PhaseDisconnected {
			s.tryApplyLocked(sess, EventReconnecting)
		}
		if _, err := Transition(sess.phase, EventReady); err != nil {
			return
		}
		s.readyLocked(sess)
	}
}

// awaitRecovery: ждём RecoveryWait; не поднялась, рвём и после кулдауна заходим заново.
func (s *Supervisor) awaitRecovery(sess *Session, seq int) {
	if err := s.sleep(sess.ctx, s.timings.RecoveryWait); err != nil {
		return
	}

	s.mu.Lock()
	if !s.currentLocked(sess) || sess.drops != seq || sess.phase != PhaseDisconnected {
		s.unlock()
		return
	}
	guild := sess.target.GuildID
	s.log.Warn("voice not recovered, destroying connection", "session", sess.id,
		"guild", guild, "err", ErrReconnectTimeout, "cooldown", s.timings.Cooldown)
	s.destroyLocked(sess, EventRecoveryTimeout)
	p := s.scheduleRecoveryLocked(guild)
	s.unlock()

	if err := s.sleep(p.ctx, s.timings.Cooldown); err != nil {
		return
	}

	s.mu.Lock()
	defer s.unlock()
	if s.pending[guild] != p {
		return // отменили: leave/reset/новый join
	}
	s.cancelRecoveryLocked(guild)
	if _, busy := s.sessions[guild]; busy {
		return
	}
	if !s.dialer.ChannelExists(guild, sess.target.ChannelID) {
		s.log.Warn("last voice channel is gone, giving up recovery", "guild", guild,
			"channel", sess.target.ChannelID)
		return
	}

	next, err := s.openLocked(sess.target, sess.retries+1)
	if err != nil {
		return
	}
	if s.OnRecovery != nil {
		s.OnRecovery(next.info())
	}
	s.goLocked(func() { _ = s.establish(context.Background(), next, 0) })
}

func (s *Supervisor) destroyLocked(sess *Session, ev Event) {
	if sess.emitter != nil {
		sess.emitter.Stop()
	}
	s.applyLocked(sess, ev)
	sess.cancel()
	if sess.link != nil {
		s.closing = append(s.closing, closingLink{session: sess.id, link: sess.link})
	}
	if s.currentLocked(sess) {
		delete(s.sessions, sess.target.GuildID)
	}
	delete(s.tracked, sess.target.GuildID)
}

func (s *Supervisor) applyLocked(sess *Session, ev Event) bool {
	next, err := Transition(sess.phase, ev)
	if err != nil {
		s.log.Debug("phase transition ignored", "session", sess.id, "err", err)
		return false
	}
	from := sess.phase
	sess.phase = next
	if s.OnPhase != nil {
		s.OnPhase(sess.info(), from)
	}
	return true
}

func (s *Supervisor) tryApplyLocked(sess *Session, ev Event) {
	if s.applyLocked(sess, ev) {
		s.log.Info("voice recovering", "session", sess.id, "phase", sess.phase)
	}
}

func (s *Supervisor) currentLocked(sess *Session) bool {
	return s.sessions[sess.target.GuildID] == sess
}

func (s *Supervisor) scheduleRecoveryLocked(guildID string) *pendingRecovery {
	s.cancelRecoveryLocked(guildID)
	ctx, cancel := context.WithCancel(s.ctx)
	p := &pendingRecovery{ctx: ctx, cancel: cancel}
	s.pending[guildID] = p
	return p
}

func (s *Supervisor) cancelRecoveryLocked(guildID string) {
	if p := s.pending[guildID]; p != nil {
		p.cancel()
		delete(s.pending, guildID)
	}
}

// unlock отпускает s.mu и закрывает снятые соединения: Close ходит в сеть.
func (s *Supervisor) unlock() {
	closing := s.closing
	s.closing = nil
	s.mu.Unlock()
	for _, c := range closing {
		if err := c.link.Close(); err != nil {
			s.log.Warn("voice close failed", "session", c.session, "err", err)
		}
	}
}

// goLocked запускает фоновую горутину, учтённую в wg. Вызывать под s.mu.
func (s *Supervisor) goLocked(fn func()) {
	if s.closed {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn()
	}()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
