// Package redisstore keeps credentials in Redis.
//
// Each account is a hash at {<prefix>}:user:<id>. A string key at
// {<prefix>}:email:<email> maps the email to its id, and a sorted set at
// {<prefix>}:users orders ids for listing. Create runs as one Lua script, so
// the email check and the insert cannot interleave with another Create. The
// braces are a cluster hash tag: all keys of one prefix live in one slot.
package redisstore
