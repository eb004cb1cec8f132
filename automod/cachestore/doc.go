// Automod component for caching serialized values (JSON strings) with a fixed TTL and purging.
//
// Includes an interface and implementations using redis and in-process memory.
//
// The engine uses this in front of the per-user settings store. Infraction histories are never cached.
package cachestore
