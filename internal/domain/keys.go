package domain

// KeyPrefix namespaces every key lectern writes to the key-value store.
const KeyPrefix = "lectern:"
