// Package config reads the engine configuration file. The file is HCL; the
// process environment is available to expressions as the env object, so
// secrets such as database URLs stay out of the file.
//
//	log_level = "debug"
//
//	server {
//	  listen = ":8080"
//	}
//
//	database {
//	  url = env.DATABASE_URL
//	}
//
//	events {
//	  socketio_url = "http://localhost:3000"
//	  namespace    = "/runs"
//	}
//
//	runs {
//	  flush_timeout  = "5s"
//	  max_concurrent = 8
//	}
package config
