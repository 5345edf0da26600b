package legacycatalog

import "time"

func nowSeconds() int64 { return time.Now().Unix() }
