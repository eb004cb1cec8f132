// Automod component for capturing chat messages along with the moderation outcome for each.
//
// Captured messages back channel message listings and the export of labeled training data. Includes an interface
// and implementations using in-process memory and SQL (via gorm).
package messagestore
