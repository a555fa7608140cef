package featureflag

type Flag string

const (
	// Makes nearest neighbors queries visit every quadrant instead of
	// skipping the ones that cannot contain a closer datapoint.
	FlagDisableKNNPruning Flag = "DISABLE_KNN_PRUNING"

	// Removes the realtime WebSocket endpoint.
	FlagDisableRealtime Flag = "DISABLE_REALTIME"

	// Rejects insert and delete requests sent over the realtime endpoint.
	FlagDisableRealtimeWrites Flag = "DISABLE_REALTIME_WRITES"
)
