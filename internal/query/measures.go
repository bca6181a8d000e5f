package query

const bounceCase = "CASE WHEN sessions.total_views <= 1 THEN 1 ELSE 0 END"

func defaultMeasures() []Measure {
	return []Measure{
		{
			Name: "visitors",
			Exprs: map[BaseTable]string{
				BaseSessions: "COUNT(DISTINCT sessions.visitor_id)",
				BaseViews:    "COUNT(DISTINCT sessions.visitor_id)",
			},
			Description: "Distinct visitors",
		},
		{
			Name: "sessions",
			Exprs: map[BaseTable]string{
				BaseSessions: "COUNT(DISTINCT sessions.id)",
				BaseViews:    "COUNT(DISTINCT views.session_id)",
			},
			Additive:    map[BaseTable]bool{BaseSessions: true},
			Description: "Distinct sessions",
		},
		{
			Name: "views",
			Exprs: map[BaseTable]string{
				BaseSessions: "COALESCE(SUM(sessions.total_views), 0)",
				BaseViews:    "COUNT(DISTINCT views.id)",
			},
			Additive:    map[BaseTable]bool{BaseSessions: true, BaseViews: true},
			Description: "Page views",
		},
		{
			Name: "bounces",
			Exprs: map[BaseTable]string{
				BaseSessions: "COALESCE(SUM(" + bounceCase + "), 0)",
				BaseViews:    "COUNT(DISTINCT CASE WHEN sessions.total_views <= 1 THEN sessions.id END)",
			},
			Additive:    map[BaseTable]bool{BaseSessions: true},
			Description: "Sessions with at most one view",
		},
		{
			Name: "bounce_rate",
			Exprs: map[BaseTable]string{
				BaseSessions: "ROUND(100.0 * SUM(" + bounceCase + ") / NULLIF(COUNT(DISTINCT sessions.id), 0), 2)",
				BaseViews:    "ROUND(100.0 * COUNT(DISTINCT CASE WHEN sessions.total_views <= 1 THEN sessions.id END) / NULLIF(COUNT(DISTINCT views.session_id), 0), 2)",
			},
			Description: "Percentage of bounced sessions",
		},
		{
			Name: "avg_duration",
			Exprs: map[BaseTable]string{
				BaseSessions: "ROUND(AVG(sessions.duration), 2)",
			},
			Description: "Average session duration in seconds",
		},
		{
			Name: "total_duration",
			Exprs: map[BaseTable]string{
				BaseSessions: "COALESCE(SUM(sessions.duration), 0)",
			},
			Additive:    map[BaseTable]bool{BaseSessions: true},
			Description: "Summed session duration in seconds",
		},
		{
			Name: "avg_view_duration",
			Exprs: map[BaseTable]string{
				BaseViews: "ROUND(AVG(views.duration), 2)",
			},
			Description: "Average time on page in seconds",
		},
		{
			Name: "total_view_duration",
			Exprs: map[BaseTable]string{
				BaseViews: "COALESCE(SUM(views.duration), 0)",
			},
			Additive:    map[BaseTable]bool{BaseViews: true},
			Description: "Summed time on page in seconds",
		},
	}
}
