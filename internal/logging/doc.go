// Package logging provides structured logging for the Easy-IP tools.
//
// Logging is built on zap and is silent by default so CLI output stays
// clean. Set the EASYIP_LOG_LEVEL environment variable (debug, info,
// warn, error) to enable diagnostic output, including hex dumps of the
// raw discovery datagrams at debug level.
package logging
