// Automod component for persisting per-user infraction histories.
//
// Includes an interface and implementations using in-process memory, redis, and SQL (via gorm). All implementations
// append infractions atomically per user: concurrent appends for the same user are never lost, and the infraction
// count always matches the stored infractions.
package historystore
