package domain

// KeyPrefix is the default namespace for all keys written to the key-value store.
const KeyPrefix = "reportqa:"
