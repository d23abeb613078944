//go:build !unix

package file

// exclusive runs fn under fp.mu only. Without flock the store is safe for a
// single process.
func (fp *Persistence) exclusive(fn func() error) error {
	return fn()
}
