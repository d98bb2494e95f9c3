package utils

// ErrorPanic aborts on errors that leave the process unusable, such as a
// failed draft store migration in the maintenance tools.
func ErrorPanic(err error) {
	if err != nil {
		panic(err)
	}
}
