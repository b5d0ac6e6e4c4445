// Package logging builds the zap logger shared by every FileDeck component.
//
// Production output is JSON, development output is colored console text.
// Components receive a *zap.Logger from Logger.Component and treat nil as a
// no-op logger. The level can be changed at runtime with SetLevel.
//
//	logger, err := logging.New(logging.Config{Level: "info", File: data.LogPath()})
//	docs := documents.NewProvider(documents.Options{Logger: logger.Component("documents")})
package logging
