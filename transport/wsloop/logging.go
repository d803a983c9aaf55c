package wsloop

import "github.com/op/go-logging"

var log = logging.MustGetLogger("wsloop")
