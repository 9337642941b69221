package http_api

// routes sets up the routes for the HTTP server.
func (s *HTTPServer) routes() {
	v1 := s.router.Group("/api/v1")
	v1.POST("/payments", s.grantQuota)
	v1.GET("/quota", s.quotaStatus)
	v1.POST("/uploads/check", s.checkUpload)
	v1.POST("/uploads", s.recordUpload)
	v1.POST("/uploads/route", s.routeUpload)
	v1.GET("/providers", s.listProviders)
}
