package main

// API metadata consumed by `swag init -g cmd/bundled/docs.go`.
//
// @title        bundled API
// @version      1.0
// @description  Download, cache and load management for content bundles.
// @description  Bundles are fetched from a platform CDN, verified by CRC and tracked in a bounded loaded set.
//
// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT
//
// @BasePath  /
// @schemes   http
// @accept    json
// @produce   json
