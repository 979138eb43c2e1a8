package catalog

import "github.com/redis/go-redis/v9"

// The document store has no transactions spanning read-modify-write, so every
// mutation runs as a single server-side script. Each script returns a status
// tag followed by the payload the Go side needs for error reporting.

var reserveScript = redis.NewScript(`
local raw = redis.call('GET', KEYS[1])
if not raw then
  return {'not_found'}
end
local doc = cjson.decode(raw)
local qty = tonumber(ARGV[1])
local expected = tonumber(ARGV[2])
if doc.version ~= expected then
  return {'conflict', tostring(doc.version)}
end
if doc.available < qty then
  return {'insufficient', tostring(doc.available)}
end
doc.available = doc.available - qty
doc.reserved = doc.reserved + qty
doc.version = doc.version + 1
doc.updated_at = ARGV[3]
local encoded = cjson.encode(doc)
redis.call('SET', KEYS[1], encoded)
return {'ok', encoded}
`)

var releaseScript = redis.NewScript(`
local raw = redis.call('GET', KEYS[1])
if not raw then
  return {'not_found'}
end
local doc = cjson.decode(raw)
local qty = tonumber(ARGV[1])
doc.available = doc.available + qty
doc.reserved = doc.reserved - qty
if doc.reserved < 0 then
  doc.reserved = 0
end
doc.version = doc.version + 1
doc.updated_at = ARGV[2]
local encoded = cjson.encode(doc)
redis.call('SET', KEYS[1], encoded)
return {'ok', encoded}
`)

var confirmScript = redis.NewScript(`
local raw = redis.call('GET', KEYS[1])
if not raw then
  return {'not_found'}
end
local doc = cjson.decode(raw)
local qty = tonumber(ARGV[1])
doc.reserved = doc.reserved - qty
if doc.reserved < 0 then
  doc.reserved = 0
end
doc.version = doc.version + 1
doc.updated_at = ARGV[2]
local encoded = cjson.encode(doc)
redis.call('SET', KEYS[1], encoded)
return {'ok', encoded}
`)

var upsertScript = redis.NewScript(`
local raw = redis.call('GET', KEYS[1])
local incoming = cjson.decode(ARGV[1])
local expected = tonumber(ARGV[2])
if not raw then
  if expected ~= 0 then
    return {'conflict', '0'}
  end
  incoming.version = 1
else
  local current = cjson.decode(raw)
  if current.version ~= expected then
    return {'conflict', tostring(current.version)}
  end
  incoming.version = expected + 1
  incoming.reserved = current.reserved
end
local encoded = cjson.encode(incoming)
redis.call('SET', KEYS[1], encoded)
return {'ok', encoded}
`)
