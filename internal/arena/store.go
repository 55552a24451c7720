package arena

import (
	"context"
	"strings"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

var (
	ErrArenaExists  = eris.New("arena already exists")
	ErrUnknownArena = eris.New("unknown arena")
	ErrBadCorner    = eris.New("corner must be 1 or 2")
	ErrEmptyName    = eris.New("arena name is empty")
)

const maxWatchRetries = 5

// Store persists the lobby and arena definitions. Every setup operation is
// written through immediately.
type Store struct {
	client *redis.Client
	prefix string
	log    zerolog.Logger
}

func NewStore(client *redis.Client, prefix string, logger zerolog.Logger) *Store {
	if prefix == "" {
		prefix = "tinyhunt"
	}
	return &Store{
		client: client,
		prefix: prefix,
		log:    logger.With().Str("component", "arena-store").Logger(),
	}
}

func (s *Store) lobbyKey() string  { return s.prefix + ":lobby" }
func (s *Store) arenasKey() string { return s.prefix + ":arenas" }
func (s *Store) activeKey() string { return s.prefix + ":active-arena" }

// Close releases the redis connection.
func (s *Store) Close() error {
	return eris.Wrap(s.client.Close(), "close redis client")
}

// Load reads the whole layout.
func (s *Store) Load(ctx context.Context) (Layout, error) {
	layout := Layout{Arenas: map[string]Definition{}}

	raw, err := s.client.Get(ctx, s.lobbyKey()).Bytes()
	switch {
	case err == nil:
		if err := json.Unmarshal(raw, &layout.Lobby); err != nil {
			return Layout{}, eris.Wrap(err, "decode lobby")
		}
	case eris.Is(err, redis.Nil):
	default:
		return Layout{}, eris.Wrap(err, "read lobby")
	}

	all, err := s.client.HGetAll(ctx, s.arenasKey()).Result()
	if err != nil {
		return Layout{}, eris.Wrap(err, "read arenas")
	}
	for name, value := range all {
		var def Definition
		if err := json.Unmarshal([]byte(value), &def); err != nil {
			s.log.Warn().Err(err).Str("arena", name).Msg("skipping unreadable arena")
			continue
		}
		layout.Arenas[name] = def
	}

	active, err := s.client.Get(ctx, s.activeKey()).Result()
	if err != nil && !eris.Is(err, redis.Nil) {
		return Layout{}, eris.Wrap(err, "read active arena")
	}
	layout.Active = active
	return layout, nil
}

// SetLobbyCorner sets corner 1 or 2 of the lobby.
func (s *Store) SetLobbyCorner(ctx context.Context, corner int, p Point) error {
	return s.update(ctx, s.lobbyKey(), func(tx *redis.Tx) (func(redis.Pipeliner), error) {
		var lobby Area
		raw, err := tx.Get(ctx, s.lobbyKey()).Bytes()
		if err != nil && !eris.Is(err, redis.Nil) {
			return nil, eris.Wrap(err, "read lobby")
		}
		if err == nil {
			if err := json.Unmarshal(raw, &lobby); err != nil {
				return nil, eris.Wrap(err, "decode lobby")
			}
		}
		if err := lobby.SetCorner(corner, p); err != nil {
			return nil, err
		}
		encoded, err := json.Marshal(lobby)
		if err != nil {
			return nil, eris.Wrap(err, "encode lobby")
		}
		return func(pipe redis.Pipeliner) {
			pipe.Set(ctx, s.lobbyKey(), encoded, 0)
		}, nil
	})
}

// CreateArena registers an empty arena. Names are case-insensitive. The
// first arena created becomes the active one.
func (s *Store) CreateArena(ctx context.Context, name string) (Definition, error) {
	name = normalizeName(name)
	if name == "" {
		return Definition{}, ErrEmptyName
	}
	def := Definition{Name: name}
	encoded, err := json.Marshal(def)
	if err != nil {
		return Definition{}, eris.Wrap(err, "encode arena")
	}
	created, err := s.client.HSetNX(ctx, s.arenasKey(), name, encoded).Result()
	if err != nil {
		return Definition{}, eris.Wrap(err, "create arena")
	}
	if !created {
		return Definition{}, eris.Wrapf(ErrArenaExists, "arena %q", name)
	}
	if err := s.client.SetNX(ctx, s.activeKey(), name, 0).Err(); err != nil {
		return Definition{}, eris.Wrap(err, "default active arena")
	}
	s.log.Info().Str("arena", name).Msg("arena created")
	return def, nil
}

// SetArenaCorner sets corner 1 or 2 of the named arena.
func (s *Store) SetArenaCorner(ctx context.Context, name string, corner int, p Point) error {
	return s.updateArena(ctx, name, func(def *Definition) error {
		return def.Area.SetCorner(corner, p)
	})
}

// AddSpawn appends a discrete spawn point to the named arena and returns the
// new spawn count.
func (s *Store) AddSpawn(ctx context.Context, name string, p Point) (int, error) {
	count := 0
	err := s.updateArena(ctx, name, func(def *Definition) error {
		def.Spawns = append(def.Spawns, p)
		count = len(def.Spawns)
		return nil
	})
	return count, err
}

// SetActive chooses the arena used by the next match.
func (s *Store) SetActive(ctx context.Context, name string) error {
	name = normalizeName(name)
	ok, err := s.client.HExists(ctx, s.arenasKey(), name).Result()
	if err != nil {
		return eris.Wrap(err, "lookup arena")
	}
	if !ok {
		return eris.Wrapf(ErrUnknownArena, "arena %q", name)
	}
	return eris.Wrap(s.client.Set(ctx, s.activeKey(), name, 0).Err(), "set active arena")
}

func (s *Store) updateArena(ctx context.Context, name string, mutate func(*Definition) error) error {
	name = normalizeName(name)
	return s.update(ctx, s.arenasKey(), func(tx *redis.Tx) (func(redis.Pipeliner), error) {
		raw, err := tx.HGet(ctx, s.arenasKey(), name).Bytes()
		if eris.Is(err, redis.Nil) {
			return nil, eris.Wrapf(ErrUnknownArena, "arena %q", name)
		}
		if err != nil {
			return nil, eris.Wrap(err, "read arena")
		}
		var def Definition
		if err := json.Unmarshal(raw, &def); err != nil {
			return nil, eris.Wrap(err, "decode arena")
		}
		if err := mutate(&def); err != nil {
			return nil, err
		}
		encoded, err := json.Marshal(def)
		if err != nil {
			return nil, eris.Wrap(err, "encode arena")
		}
		return func(pipe redis.Pipeliner) {
			pipe.HSet(ctx, s.arenasKey(), name, encoded)
		}, nil
	})
}

// update runs an optimistic read-modify-write on key, retrying when another
// writer got there first.
func (s *Store) update(ctx context.Context, key string, read func(*redis.Tx) (func(redis.Pipeliner), error)) error {
	txf := func(tx *redis.Tx) error {
		write, err := read(tx)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			write(pipe)
			return nil
		})
		return err
	}
	for i := 0; i < maxWatchRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if eris.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return eris.Wrapf(err, "update %s", key)
		}
		return nil
	}
	return eris.Errorf("update %s: too many concurrent writers", key)
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
