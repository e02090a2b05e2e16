package splatfit

import "sync"

// shardLocks serialize per-point gradient accumulation when blend tiles
// run in parallel: one point can overlap many tiles.
type shardLocks struct{ mu [NumShards]sync.Mutex }

func (sl *shardLocks) lock(idx int)   { sl.mu[idx&(NumShards-1)].Lock() }
func (sl *shardLocks) unlock(idx int) { sl.mu[idx&(NumShards-1)].Unlock() }
