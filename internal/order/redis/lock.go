package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"train-station/internal/logger"
)

const seatHoldPrefix = "seat_hold:"

// DefaultHoldTTL bounds how long a crashed booking can keep a seat held.
const DefaultHoldTTL = 30 * time.Second

// Seat identifies one seat of one trip.
type Seat struct {
	Trip int64
	Seat int
}

func (s Seat) key() string {
	return fmt.Sprintf("%s%d:%d", seatHoldPrefix, s.Trip, s.Seat)
}

// SeatHolds keeps short-lived per-seat holds while a booking is being written.
type SeatHolds struct {
	Client *redis.Client
	TTL    time.Duration
	Logger *logger.Logger
}

func NewSeatHolds(client *redis.Client, ttl time.Duration, log *logger.Logger) *SeatHolds {
	if ttl <= 0 {
		ttl = DefaultHoldTTL
	}
	return &SeatHolds{Client: client, TTL: ttl, Logger: log}
}

func (r *SeatHolds) hold(ctx context.Context, seat Seat, owner string) (bool, error) {
	return r.Client.SetNX(ctx, seat.key(), owner, r.TTL).Result()
}

func (r *SeatHolds) release(ctx context.Context, seat Seat, owner string) error {
	key := seat.key()
	val, err := r.Client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return err
	}
	if val != owner {
		return nil
	}
	return r.Client.Del(ctx, key).Err()
}

// Hold takes every seat for owner or none of them. It returns false with the
// first contended seat when another owner holds one.
func (r *SeatHolds) Hold(ctx context.Context, seats []Seat, owner string) (bool, *Seat, error) {
	held := make([]Seat, 0, len(seats))
	for i, seat := range seats {
		ok, err := r.hold(ctx, seat, owner)
		if err != nil || !ok {
			for _, h := range held {
				_ = r.release(ctx, h, owner)
			}
			if err != nil {
				return false, nil, fmt.Errorf("hold seat %d on trip %d: %w", seat.Seat, seat.Trip, err)
			}
			r.Logger.Debug("REDIS", fmt.Sprintf("Seat %d on trip %d is held by another booking", seat.Seat, seat.Trip))
			return false, &seats[i], nil
		}
		held = append(held, seat)
	}
	return true, nil, nil
}

// Release drops the holds owner took. Holds taken by other owners survive.
func (r *SeatHolds) Release(ctx context.Context, seats []Seat, owner string) error {
	var firstErr error
	for _, seat := range seats {
		if err := r.release(ctx, seat, owner); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
