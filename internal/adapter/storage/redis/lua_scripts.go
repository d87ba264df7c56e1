package redis

import "github.com/redis/go-redis/v9"

// The three scripts below are the atomic core of the admission controller.
// Each one executes the full prune/read -> compare -> append/consume ->
// write sequence server-side, so two concurrent evaluations can never both
// observe the last free slot and both be admitted.
//
// All timestamps are epoch milliseconds. Millisecond integers stay exact
// inside Lua's double-precision numbers, which nanosecond epochs would not.
//
// Every script returns {allowed, remaining_or_tokens, reset_ms}. Fractional
// values are returned as strings because Lua -> Redis conversion truncates
// numbers to integers.

// fixedWindowScript records admissions in a sorted set scored by timestamp.
//
// KEYS[1]: window record key
// ARGV[1]: limit            - max admissions per window
// ARGV[2]: window_ms        - window length in milliseconds
// ARGV[3]: now_ms           - current time in epoch milliseconds
// ARGV[4]: member           - unique member for this admission
//
// Window boundaries are aligned to the epoch, not to the first request.
// Up to 2x limit may legitimately pass across a boundary straddling two
// adjacent windows; that burst is a defining property of fixed windows.
var fixedWindowScript = redis.NewScript(`
local limit = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local member = ARGV[4]

local window_start = math.floor(now / window) * window
local reset = window_start + window

redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', '(' .. window_start)
local count = redis.call('ZCARD', KEYS[1])

if count >= limit then
    return {0, 0, tostring(reset)}
end

redis.call('ZADD', KEYS[1], now, member)
redis.call('PEXPIRE', KEYS[1], window * 2)

return {1, limit - count - 1, tostring(reset)}
`)

// slidingWindowScript is the same record shape with a continuous window:
// the boundary slides back from the current instant, so bursts are bounded
// by limit over any rolling interval.
//
// KEYS[1]: window record key
// ARGV[1]: limit
// ARGV[2]: window_ms
// ARGV[3]: now_ms
// ARGV[4]: member
//
// On a denial the reset time is when the oldest counted admission falls out
// of the window.
var slidingWindowScript = redis.NewScript(`
local limit = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local member = ARGV[4]

local window_start = now - window

redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', '(' .. window_start)
local count = redis.call('ZCARD', KEYS[1])

if count >= limit then
    local oldest = redis.call('ZRANGE', KEYS[1], 0, 0, 'WITHSCORES')
    local reset = now + window
    if oldest[2] then
        reset = tonumber(oldest[2]) + window
    end
    return {0, 0, tostring(reset)}
end

redis.call('ZADD', KEYS[1], now, member)
redis.call('PEXPIRE', KEYS[1], window * 2)

return {1, limit - count - 1, tostring(now + window)}
`)

// tokenBucketScript keeps (tokens, last_refill) in a hash. Tokens are
// fractional throughout; only the admission test (>= 1) and the reported
// remaining truncate to an integer.
//
// KEYS[1]: bucket record key
// ARGV[1]: capacity          - max tokens the bucket holds
// ARGV[2]: refill_per_second - tokens added per second
// ARGV[3]: now_ms
// ARGV[4]: idle_ttl_ms       - expiry for an untouched bucket
//
// A missing record initializes to a full bucket. The clamp on elapsed
// guards against a caller clock running behind the stored last_refill.
var tokenBucketScript = redis.NewScript(`
local capacity = tonumber(ARGV[1])
local rate = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local idle_ttl = tonumber(ARGV[4])

local state = redis.call('HMGET', KEYS[1], 'tokens', 'last_refill')
local tokens = tonumber(state[1]) or capacity
local last_refill = tonumber(state[2]) or now

local elapsed = (now - last_refill) / 1000
if elapsed < 0 then
    elapsed = 0
end
tokens = math.min(capacity, tokens + elapsed * rate)

local allowed = 0
local reset
if tokens >= 1 then
    allowed = 1
    tokens = tokens - 1
    reset = now + 1000 / rate
else
    reset = now + ((1 - tokens) / rate) * 1000
end

redis.call('HSET', KEYS[1], 'tokens', tostring(tokens), 'last_refill', tostring(now))
redis.call('PEXPIRE', KEYS[1], idle_ttl)

return {allowed, tostring(tokens), tostring(reset)}
`)
