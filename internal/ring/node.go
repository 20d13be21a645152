// Package ring implements the Chord-style consistent-hashing ring: node
// membership, O(log N) lookup, stabilization, finger repair, and key
// ownership/transfer on join and leave.
package ring

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zde37/torus/internal/config"
	"github.com/zde37/torus/internal/events"
	"github.com/zde37/torus/internal/failure"
	"github.com/zde37/torus/internal/replication"
	"github.com/zde37/torus/pkg/hashid"
	"github.com/zde37/torus/pkg/logging"
	"github.com/zde37/torus/pkg/store"
)

var (
	ErrNotOwner              = errors.New("ring: this node does not own the key")
	ErrPeerUnreachable       = errors.New("ring: peer unreachable")
	ErrReplicationShortfall  = errors.New("ring: could not reach replication factor")
	ErrShuttingDown          = errors.New("ring: node is shutting down")
)

// RemoteClient is everything the ring node needs from another node over the
// network. Kept as an interface here (rather than importing the transport
// package directly) so ring has no dependency on the wire protocol.
type RemoteClient interface {
	FindSuccessor(ctx context.Context, addr string, id *big.Int) (*Peer, error)
	GetPredecessor(ctx context.Context, addr string) (*Peer, error)
	Notify(ctx context.Context, addr string, self *Peer) error
	GetSuccessorList(ctx context.Context, addr string) ([]*Peer, error)
	Ping(ctx context.Context, addr string) error
	NodeInfo(ctx context.Context, addr string) (*Peer, error)

	TransferKeys(ctx context.Context, addr string, keys map[string][]byte) error

	SetReplica(ctx context.Context, addr string, key, value []byte) error
	DeleteReplica(ctx context.Context, addr string, key []byte) error

	Get(ctx context.Context, addr string, key []byte) ([]byte, error)
	Set(ctx context.Context, addr string, key, value []byte) error
	Delete(ctx context.Context, addr string, key []byte) error
}

// Node is a single member of the Chord ring.
type Node struct {
	self   *Peer
	cfg    *config.Config
	logger *logging.Logger

	store   *store.Store
	remote  RemoteClient
	replica *replication.Engine
	detect  *failure.Detector
	events  events.Broadcaster

	fingerMu    sync.RWMutex
	fingerTable []*FingerEntry

	successorMu    sync.RWMutex
	successorList  []*Peer

	predecessorMu sync.RWMutex
	predecessor   *Peer

	nextFingerMu    sync.Mutex
	nextFingerToFix int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	running atomic.Bool
	closed  atomic.Bool
}

// NewNode constructs a ring node bound to host:port but does not yet
// place it on any ring; call Create or Join to do that.
func NewNode(cfg *config.Config, logger *logging.Logger) (*Node, error) {
	if cfg == nil {
		return nil, errors.New("ring: config must not be nil")
	}
	if logger == nil {
		return nil, errors.New("ring: logger must not be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("ring: invalid config: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	n := &Node{
		self:   NewPeer(cfg.Host, cfg.Port),
		cfg:    cfg,
		logger: logger.WithFields(logging.Fields{"component": "ring"}),
		store:  store.New(),
		detect: failure.NewDetector(cfg.FailureCheckInterval),
		events: events.NewNopBroadcaster(),
		ctx:    ctx,
		cancel: cancel,
	}
	n.initFingerTable()
	n.replica = replication.NewEngine(replication.Config{
		ReplicationFactor: cfg.ReplicationFactor,
		Timeout:           cfg.RPCTimeout,
		MaxRetries:        cfg.RPCMaxRetries,
		Async:             cfg.ReplicaAsync,
	}, n.dialReplica, logger)

	return n, nil
}

// ID returns a copy of this node's identifier.
func (n *Node) ID() *big.Int { return new(big.Int).Set(n.self.ID) }

// Address returns this node's dial address.
func (n *Node) Address() string { return n.self.Address() }

// Self returns a defensive copy of this node's peer descriptor.
func (n *Node) Self() *Peer { return n.self.Copy() }

// SetRemote injects the peer RPC client used for all outbound calls.
func (n *Node) SetRemote(remote RemoteClient) {
	n.remote = remote
	n.replica.SetReadFunc(func(ctx context.Context, addr string, key []byte) ([]byte, error) {
		return remote.Get(ctx, addr, key)
	})
	n.detect.SetProbeFunc(func(ctx context.Context, addr string) error {
		return remote.Ping(ctx, addr)
	})
}

// SetEventBroadcaster wires a broadcaster that receives join/leave/
// stabilization notifications for the monitoring surface.
func (n *Node) SetEventBroadcaster(b events.Broadcaster) { n.events = b }

// Store exposes the local key/value store for the request dispatcher.
func (n *Node) Store() *store.Store { return n.store }

func (n *Node) initFingerTable() {
	n.fingerMu.Lock()
	defer n.fingerMu.Unlock()

	n.fingerTable = make([]*FingerEntry, hashid.M)
	for i := 0; i < hashid.M; i++ {
		n.fingerTable[i] = &FingerEntry{
			Start: hashid.AddPow2(n.self.ID, i),
			Node:  n.self.Copy(),
		}
	}
}

func (n *Node) successor() *Peer {
	n.successorMu.RLock()
	defer n.successorMu.RUnlock()
	if len(n.successorList) == 0 {
		return n.self.Copy()
	}
	return n.successorList[0].Copy()
}

func (n *Node) setSuccessor(p *Peer) {
	n.successorMu.Lock()
	rest := n.successorList
	if len(rest) > 0 {
		rest = rest[1:]
	}
	newList := append([]*Peer{p.Copy()}, rest...)
	if len(newList) > n.cfg.SuccessorListSize {
		newList = newList[:n.cfg.SuccessorListSize]
	}
	n.successorList = newList
	n.successorMu.Unlock()

	n.setFinger(0, p)
}

func (n *Node) getSuccessorList() []*Peer {
	n.successorMu.RLock()
	defer n.successorMu.RUnlock()
	out := make([]*Peer, len(n.successorList))
	for i, p := range n.successorList {
		out[i] = p.Copy()
	}
	return out
}

func (n *Node) setSuccessorList(list []*Peer) {
	n.successorMu.Lock()
	defer n.successorMu.Unlock()

	max := n.cfg.SuccessorListSize
	if len(list) > max {
		list = list[:max]
	}
	newList := make([]*Peer, len(list))
	for i, p := range list {
		newList[i] = p.Copy()
	}
	n.successorList = newList
}

func (n *Node) getPredecessor() *Peer {
	n.predecessorMu.RLock()
	defer n.predecessorMu.RUnlock()
	return n.predecessor.Copy()
}

func (n *Node) setPredecessor(p *Peer) {
	n.predecessorMu.Lock()
	old := n.predecessor
	n.predecessor = p.Copy()
	n.predecessorMu.Unlock()

	if old == nil && p != nil {
		n.logger.Info().Str("predecessor", p.String()).Msg("predecessor set")
	} else if old != nil && !old.Equals(p) {
		n.logger.Info().Str("old", old.String()).Str("new", p.String()).Msg("predecessor changed")
	}
}

func (n *Node) getFinger(i int) *FingerEntry {
	n.fingerMu.RLock()
	defer n.fingerMu.RUnlock()
	return n.fingerTable[i].Copy()
}

func (n *Node) setFinger(i int, p *Peer) {
	n.fingerMu.Lock()
	defer n.fingerMu.Unlock()
	n.fingerTable[i].Node = p.Copy()
}

// Create bootstraps a brand-new, single-node ring.
func (n *Node) Create() error {
	n.setPredecessor(nil)
	n.setSuccessorList([]*Peer{n.self.Copy()})
	n.running.Store(true)
	n.startBackgroundTasks()
	n.logger.Info().Str("id", n.self.ID.Text(16)).Msg("created new ring")
	return nil
}

// Join contacts bootstrapAddr to locate this node's successor and place it
// on the existing ring. Per the push model, Join does not pull data: the
// successor pushes owned keys back to us from its Notify handler once it
// sees us as its new predecessor.
func (n *Node) Join(ctx context.Context, bootstrapAddr string) error {
	if n.remote == nil {
		return errors.New("ring: no remote client configured")
	}

	succ, err := n.remote.FindSuccessor(ctx, bootstrapAddr, n.self.ID)
	if err != nil {
		return fmt.Errorf("ring: join failed to find successor: %w", err)
	}

	n.setPredecessor(nil)
	n.setSuccessorList([]*Peer{succ})

	n.running.Store(true)
	n.startBackgroundTasks()

	if err := n.remote.Notify(ctx, succ.Address(), n.self.Copy()); err != nil {
		n.logger.Warn().Err(err).Msg("initial notify to successor failed, stabilization will retry")
	}

	n.logger.Info().
		Str("id", n.self.ID.Text(16)).
		Str("successor", succ.String()).
		Msg("joined ring")
	n.events.Publish(events.Event{Type: events.NodeJoin, NodeID: n.self.ID.Text(16), Message: "joined via " + bootstrapAddr})
	return nil
}

func (n *Node) startBackgroundTasks() {
	n.wg.Add(3)
	go n.stabilizeLoop()
	go n.fixFingersLoop()
	go n.failureDetectionLoop()
}

func (n *Node) stabilizeLoop() {
	defer n.wg.Done()
	ticker := time.NewTicker(n.cfg.StabilizeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			n.stabilize()
		case <-n.ctx.Done():
			return
		}
	}
}

func (n *Node) fixFingersLoop() {
	defer n.wg.Done()
	ticker := time.NewTicker(n.cfg.FixFingersInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			n.fixFingers()
		case <-n.ctx.Done():
			return
		}
	}
}

func (n *Node) failureDetectionLoop() {
	defer n.wg.Done()
	ticker := time.NewTicker(n.cfg.FailureCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			n.checkFailures()
		case <-n.ctx.Done():
			return
		}
	}
}

// stabilize asks the successor for its predecessor and adopts it as our own
// successor if it lies strictly between us and our current successor, then
// notifies whoever ends up as our successor of our existence.
func (n *Node) stabilize() {
	if n.remote == nil {
		return
	}
	succ := n.successor()

	var x *Peer
	if succ.Equals(n.self) {
		// we are our own successor: our own predecessor is the candidate
		x = n.getPredecessor()
	} else {
		ctx, cancel := context.WithTimeout(n.ctx, n.cfg.RPCTimeout)
		var err error
		x, err = n.remote.GetPredecessor(ctx, succ.Address())
		cancel()
		if err != nil {
			n.logger.Debug().Err(err).Str("successor", succ.String()).Msg("stabilize: get-predecessor failed")
			return
		}
	}

	if x != nil && hashid.Between(x.ID, n.self.ID, succ.ID) {
		n.setSuccessor(x)
		succ = x
	}
	if succ.Equals(n.self) {
		// still a single-node ring: nobody else to notify
		return
	}

	notifyCtx, notifyCancel := context.WithTimeout(n.ctx, n.cfg.RPCTimeout)
	if err := n.remote.Notify(notifyCtx, succ.Address(), n.self.Copy()); err != nil {
		n.logger.Debug().Err(err).Str("successor", succ.String()).Msg("stabilize: notify failed")
	}
	notifyCancel()

	listCtx, listCancel := context.WithTimeout(n.ctx, n.cfg.RPCTimeout)
	if list, err := n.remote.GetSuccessorList(listCtx, succ.Address()); err == nil {
		merged := append([]*Peer{succ}, list...)
		n.setSuccessorList(merged)
	}
	listCancel()
	n.events.Publish(events.Event{Type: events.Stabilization, NodeID: n.self.ID.Text(16)})
}

// Notify is called (locally, via the dispatcher's RPC handler) by a
// candidate claiming to be our predecessor. If it fits, we adopt it and
// push it the keys it now owns.
func (n *Node) Notify(candidate *Peer) {
	pred := n.getPredecessor()
	if pred == nil || hashid.Between(candidate.ID, pred.ID, n.self.ID) {
		n.setPredecessor(candidate)
		n.transferKeysTo(pred, candidate)
	}
}

// transferKeysTo pushes the keys candidate now owns (those between oldPred
// and candidate's id) to candidate and removes them from local storage.
// oldPred may be nil, in which case the keys in (self, candidate] are
// pushed: everything this node no longer owns once candidate precedes it.
func (n *Node) transferKeysTo(oldPred, candidate *Peer) {
	if n.remote == nil || candidate.Equals(n.self) {
		return
	}

	pred := func(key []byte) bool {
		keyID := hashid.Hash(key)
		if oldPred == nil {
			return hashid.InRange(keyID, n.self.ID, candidate.ID)
		}
		return hashid.InRange(keyID, oldPred.ID, candidate.ID)
	}

	owed := n.store.Filter(pred)
	if len(owed) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(n.ctx, n.cfg.RPCTimeout)
	defer cancel()

	if err := n.remote.TransferKeys(ctx, candidate.Address(), owed); err != nil {
		n.logger.Warn().Err(err).Str("to", candidate.String()).Msg("key transfer failed, keeping keys locally")
		return
	}

	n.store.RemoveAll(pred)
	n.logger.Info().Int("count", len(owed)).Str("to", candidate.String()).Msg("transferred keys")
}

// ReceiveTransferredKeys is called by the dispatcher when this node is the
// target of a push from transferKeysTo.
func (n *Node) ReceiveTransferredKeys(keys map[string][]byte) {
	for k, v := range keys {
		n.store.Put([]byte(k), v)
	}
}

func (n *Node) fixFingers() {
	n.nextFingerMu.Lock()
	i := n.nextFingerToFix
	n.nextFingerToFix = (i + 1) % hashid.M
	n.nextFingerMu.Unlock()

	target := hashid.AddPow2(n.self.ID, i)
	ctx, cancel := context.WithTimeout(n.ctx, n.cfg.RPCTimeout)
	defer cancel()

	succ, err := n.FindSuccessor(ctx, target)
	if err != nil {
		return
	}
	n.setFinger(i, succ)
}

// FindSuccessor resolves the node responsible for id, forwarding the
// lookup through the ring when it isn't us or our immediate successor.
func (n *Node) FindSuccessor(ctx context.Context, id *big.Int) (*Peer, error) {
	succ := n.successor()
	if hashid.InRange(id, n.self.ID, succ.ID) {
		return succ, nil
	}

	closest := n.closestPrecedingNode(id)
	if closest.Equals(n.self) {
		// nothing closer known; the successor is our best answer even
		// though id isn't strictly in (self, succ]
		return succ, nil
	}

	if n.remote == nil {
		return succ, nil
	}

	result, err := n.remote.FindSuccessor(ctx, closest.Address(), id)
	if err != nil {
		// conservative fallback: our own successor, per the ring's
		// forwarding contract, rather than the closest node found so far
		n.logger.Debug().Err(err).Str("via", closest.String()).Msg("find-successor forward failed, falling back to successor")
		return succ, nil
	}
	return result, nil
}

func (n *Node) closestPrecedingNode(id *big.Int) *Peer {
	n.fingerMu.RLock()
	defer n.fingerMu.RUnlock()

	for i := hashid.M - 1; i >= 0; i-- {
		f := n.fingerTable[i]
		if f.Node == nil || f.Node.Equals(n.self) {
			continue
		}
		if hashid.Between(f.Node.ID, n.self.ID, id) {
			return f.Node.Copy()
		}
	}
	return n.self.Copy()
}

// Predecessor exposes this node's current predecessor for the RPC handler
// answering GET_PREDECESSOR.
func (n *Node) Predecessor() *Peer { return n.getPredecessor() }

// SuccessorList exposes this node's current successor list for the RPC
// handler answering GET_SUCCESSOR.
func (n *Node) SuccessorList() []*Peer { return n.getSuccessorList() }

// ReceiveReplica stores a replicated key/value pushed by a primary owner.
func (n *Node) ReceiveReplica(key, value []byte) { n.store.Put(key, value) }

// RemoveReplica deletes a replicated key pushed by a primary owner.
func (n *Node) RemoveReplica(key []byte) { n.store.Remove(key) }

// IsPrimaryFor reports whether this node is the primary owner of id: the
// interval (predecessor, self]. With no predecessor (single-node ring),
// this node owns everything.
func (n *Node) IsPrimaryFor(id *big.Int) bool {
	pred := n.getPredecessor()
	if pred == nil {
		return true
	}
	return hashid.InRange(id, pred.ID, n.self.ID)
}

func (n *Node) checkFailures() {
	if n.remote == nil {
		return
	}
	candidates := n.getSuccessorList()
	if pred := n.getPredecessor(); pred != nil {
		candidates = append(candidates, pred)
	}

	for _, p := range candidates {
		if p.Equals(n.self) {
			continue
		}
		ctx, cancel := context.WithTimeout(n.ctx, n.cfg.RPCTimeout)
		n.detect.Probe(ctx, p)
		cancel()
	}

	n.handleFailedSuccessor()
	n.detect.EvictOlderThan(n.cfg.FailureCheckInterval * 10)
}

func (n *Node) handleFailedSuccessor() {
	list := n.getSuccessorList()
	if len(list) > 0 && n.detect.IsFailed(list[0].Address()) {
		for len(list) > 1 && n.detect.IsFailed(list[0].Address()) {
			n.logger.Warn().Str("failed", list[0].String()).Msg("successor failed, promoting next")
			n.detect.MarkDead(list[0].Address())
			list = list[1:]
		}
		n.setSuccessorList(list)
	}

	failed := n.getPredecessor()
	if failed != nil && n.detect.IsFailed(failed.Address()) {
		n.detect.MarkDead(failed.Address())
		n.setPredecessor(nil)
	}
}

// dialReplica adapts RemoteClient to the function shape replication.Engine
// expects, used both for SetReplica/DeleteReplica pushes.
func (n *Node) dialReplica(ctx context.Context, addr string, op replication.Op, key, value []byte) error {
	switch op {
	case replication.OpSet:
		return n.remote.SetReplica(ctx, addr, key, value)
	case replication.OpDelete:
		return n.remote.DeleteReplica(ctx, addr, key)
	default:
		return fmt.Errorf("ring: unknown replication op %v", op)
	}
}

// replicaSet returns up to R-1 distinct successors, excluding this node
// itself, that should hold replicas of a key this node primarily owns.
// Self can appear in the successor list on small rings (stabilize's
// successor-list merge folds the caller's own peer back in once the ring
// wraps), and duplicate addresses can appear across merges, so both are
// filtered before truncating to R-1.
func (n *Node) replicaSet() []replication.Peer {
	return n.replicaSetFrom(n.getSuccessorList())
}

// replicaSetFrom applies replicaSet's self-exclusion and dedup rules to an
// arbitrary successor list, so callers holding a remote owner's successor
// list (rather than this node's own) can derive that owner's replica set.
func (n *Node) replicaSetFrom(list []*Peer) []replication.Peer {
	r := n.cfg.ReplicationFactor - 1

	seen := make(map[string]bool, len(list))
	out := make([]replication.Peer, 0, r)
	for _, p := range list {
		if len(out) >= r {
			break
		}
		if p.Equals(n.self) || seen[p.Address()] {
			continue
		}
		seen[p.Address()] = true
		out = append(out, p)
	}
	return out
}

// Get resolves key's owner and returns its value, forwarding to the owner
// if it isn't this node, and falling back to a replica if the primary is
// unreachable.
func (n *Node) Get(ctx context.Context, key []byte) ([]byte, error) {
	id := hashid.Hash(key)
	owner, err := n.FindSuccessor(ctx, id)
	if err != nil {
		return nil, err
	}

	if owner.Equals(n.self) {
		v, ok := n.store.Get(key)
		if !ok {
			return nil, store.ErrKeyNotFound
		}
		return v, nil
	}

	if n.remote == nil {
		return nil, ErrPeerUnreachable
	}
	v, err := n.remote.Get(ctx, owner.Address(), key)
	if err == nil {
		return v, nil
	}
	if errors.Is(err, store.ErrKeyNotFound) {
		return nil, err
	}
	// primary unreachable: fall back to the owner's own replicas, not ours
	replicas := n.replicaSet()
	if list, lerr := n.remote.GetSuccessorList(ctx, owner.Address()); lerr == nil {
		replicas = n.replicaSetFrom(list)
	}
	return n.replica.ReadFromReplicas(ctx, key, replicas)
}

// Set resolves key's owner, writes it there (locally or by forwarding),
// and fans the write out to replicas. When this node is the owner and
// synchronous replication fails, the local write is removed again and the
// replication error is returned.
func (n *Node) Set(ctx context.Context, key, value []byte) error {
	id := hashid.Hash(key)
	owner, err := n.FindSuccessor(ctx, id)
	if err != nil {
		return err
	}

	if !owner.Equals(n.self) {
		if n.remote == nil {
			return ErrPeerUnreachable
		}
		return n.remote.Set(ctx, owner.Address(), key, value)
	}

	n.store.Put(key, value)
	if err := n.replica.ReplicatePut(ctx, key, value, n.replicaSet()); err != nil {
		n.store.Remove(key)
		return err
	}
	return nil
}

// Delete resolves key's owner, deletes it there, and propagates the
// deletion to replicas. A failed propagation is logged, not returned.
func (n *Node) Delete(ctx context.Context, key []byte) error {
	id := hashid.Hash(key)
	owner, err := n.FindSuccessor(ctx, id)
	if err != nil {
		return err
	}

	if !owner.Equals(n.self) {
		if n.remote == nil {
			return ErrPeerUnreachable
		}
		return n.remote.Delete(ctx, owner.Address(), key)
	}

	n.store.Remove(key)
	if err := n.replica.ReplicateDelete(ctx, key, n.replicaSet()); err != nil {
		n.logger.Warn().Err(err).Msg("delete: replica propagation failed")
	}
	return nil
}

// Leave gracefully removes this node from the ring: it signals background
// tasks to stop, pushes its entire local store to its successor, and sends
// the successor a Notify naming this node's predecessor (accepted only
// under the successor's usual Notify rule). The predecessor is not
// contacted; it relinks through stabilization and failure detection.
func (n *Node) Leave(ctx context.Context) error {
	if !n.closed.CompareAndSwap(false, true) {
		return nil
	}

	n.running.Store(false)
	n.replica.Stop()

	// Detach rather than join: the three background loops are signaled to
	// stop here but not waited on, so a hung remote call inside one of
	// them (e.g. a stabilize RPC to an unreachable peer) cannot block
	// Leave from returning.
	n.cancel()

	succ := n.successor()
	if n.remote != nil && !succ.Equals(n.self) {
		owed := n.store.Snapshot()
		if len(owed) > 0 {
			if err := n.remote.TransferKeys(ctx, succ.Address(), owed); err != nil {
				n.logger.Warn().Err(err).Msg("leave: failed to push keys to successor")
			}
		}
		if pred := n.getPredecessor(); pred != nil && !pred.Equals(n.self) {
			_ = n.remote.Notify(ctx, succ.Address(), pred)
		}
	}

	n.setPredecessor(nil)
	n.setSuccessorList([]*Peer{n.self.Copy()})
	n.initFingerTable()

	n.events.Publish(events.Event{Type: events.NodeLeave, NodeID: n.self.ID.Text(16)})
	n.logger.Info().Msg("left ring")
	return nil
}

// Shutdown stops background tasks without migrating data, for abrupt
// termination (e.g. simulating a crash in tests).
func (n *Node) Shutdown() error {
	if !n.closed.CompareAndSwap(false, true) {
		return nil
	}
	n.running.Store(false)
	n.replica.Stop()
	n.cancel()
	n.wg.Wait()
	return nil
}

// IsRunning reports whether background tasks are active.
func (n *Node) IsRunning() bool { return n.running.Load() }

// Snapshot describes this node's current view of the ring, for the
// monitoring surface.
type Snapshot struct {
	Self          *Peer
	Predecessor   *Peer
	SuccessorList []*Peer
	Fingers       []*FingerEntry
	StoreStats    store.Stats
}

// RingSnapshot builds a point-in-time view of this node's routing state.
func (n *Node) RingSnapshot() Snapshot {
	n.fingerMu.RLock()
	fingers := make([]*FingerEntry, len(n.fingerTable))
	for i, f := range n.fingerTable {
		fingers[i] = f.Copy()
	}
	n.fingerMu.RUnlock()

	return Snapshot{
		Self:          n.self.Copy(),
		Predecessor:   n.getPredecessor(),
		SuccessorList: n.getSuccessorList(),
		Fingers:       fingers,
		StoreStats:    n.store.GetStats(),
	}
}
