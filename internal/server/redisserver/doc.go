// Package redisserver provides a Redis protocol compatible server for tokstash.
//
// It speaks the RESP2 subset redis-cli and go-redis clients need:
//
//   - PING [message], QUIT
//   - TOKEN.CREATE <json> <ttl>       bulk {"token":...,"expiration":...}
//   - TOKEN.VALIDATE <token>          bulk body, or -ERR TS-TOKN-4100 invalid token
//   - TOKEN.EXPIRE <token>            :1 when archived, :0 otherwise
//   - TOKEN.UPDATE <token> <ttl>      bulk {"token":...,"expiration":...}
//   - TOKEN.EXPIRED <token>           bulk body, or -ERR TS-TOKN-4100 invalid token
//
// Inline commands work as well. Double quotes group an argument that
// contains spaces, e.g. TOKEN.CREATE "{\"user\": \"a b\"}" 60.
//
// Caller errors reply "-ERR <code> <message>". Backend failures reply
// with an eid that is logged next to the cause.
package redisserver
