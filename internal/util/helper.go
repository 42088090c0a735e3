package util

// CloneSlice clones slice with cloneSize.
// This function will use src length as the clone size if cloneSize is 0.
func CloneSlice[T any](src []T, cloneSize int) []T {
	if cloneSize == 0 {
		cloneSize = len(src)
	}
	clone := make([]T, cloneSize)
	copy(clone, src)

	return clone
}

// Tail returns a copy of the last n elements of src, or of all of src when it is shorter.
// A non-positive n yields an empty, non-nil slice.
func Tail[T any](src []T, n int) []T {
	if n <= 0 {
		return []T{}
	}
	if n > len(src) {
		n = len(src)
	}

	return CloneSlice(src[len(src)-n:], 0)
}
