package errors

import "errors"

var (
	// ErrNoMatchingTag supplies the message of the resolution error the
	// version matcher returns when no candidate tag or branch satisfies an
	// abstract version pattern. That error does not wrap this value.
	ErrNoMatchingTag = errors.New("no matching tag for requested version")

	// ErrEmptyTagList supplies the message of the resolution error returned
	// when "latest" is requested but the upstream source returned no tags
	// at all. That error does not wrap this value.
	ErrEmptyTagList = errors.New("no tags available to resolve 'latest'")
)
