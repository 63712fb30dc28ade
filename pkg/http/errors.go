package http

import (
	"errors"

	imgerr "github.com/xraynetwork/imgcdn/pkg/errors"
)

var ErrAPINotFound = &imgerr.Error{
	Type: imgerr.Missing,
	Help: `The path requested is not served.

Images are served at

    /cdn/{network}/{class}/{fingerprint}/{size}

where class is "metadata" or "registry", and network is one of those
configured.
`,
	Err: errors.New("404. API not found. Check if the request is correct"),
}

var ErrSizeNotFound = &imgerr.Error{
	Type: imgerr.User,
	Help: `The image size requested is not served.

Metadata images come in sizes 32, 64, 128, 256, 512, 1024 and 2048;
registry logos in sizes 32 to 512.
`,
	Err: errors.New("404. Image size not found! Check if the request is correct"),
}

var ErrImageNotFound = &imgerr.Error{
	Type: imgerr.Missing,
	Help: `No image could be found for this asset.

The asset may not exist on this network, carry no image in its
metadata, or point at an image that could not be fetched.
`,
	Err: errors.New("404. Image not found! Check if the request is correct"),
}

var ErrMethodNotAllowed = &imgerr.Error{
	Type: imgerr.User,
	Help: `Only GET, HEAD, POST and OPTIONS are answered.
`,
	Err: errors.New("405. Method not allowed. Check if the request is correct"),
}
