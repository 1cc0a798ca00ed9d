package statistics

import (
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/DiveDeskApp/DiveDesk/app/repository"
	"github.com/DiveDeskApp/DiveDesk/internal/pkg/cache"
)

const (
	CacheKeyDeliveriesTotal = "statistics:deliveries:total"
	CacheKeyDeliveriesDaily = "statistics:deliveries:daily:%s" // Format with date YYYY-MM-DD
	CacheKeyWebhooksActive  = "statistics:webhooks:active"
	CacheExpiration         = 30 * time.Minute
)

// StatisticsData holds the platform-wide delivery figures for the admin
// dashboard.
type StatisticsData struct {
	TodayDeliveries int `json:"today_deliveries"`
	TotalDeliveries int `json:"total_deliveries"`
	ActiveWebhooks  int `json:"active_webhooks"`
}

var (
	lastCacheUpdate     time.Time
	cacheUpdateMutex    sync.Mutex
	cacheUpdateInterval = 5 * time.Minute
)

// ShouldUpdateCache reports whether the cached figures are older than the
// refresh interval.
func ShouldUpdateCache() bool {
	cacheUpdateMutex.Lock()
	defer cacheUpdateMutex.Unlock()

	return time.Since(lastCacheUpdate) > cacheUpdateInterval
}

// UpdateCacheIfNeeded refreshes the cached figures when they are stale.
func UpdateCacheIfNeeded() {
	if ShouldUpdateCache() {
		cacheUpdateMutex.Lock()
		defer cacheUpdateMutex.Unlock()

		if err := UpdateStatisticsCache(); err != nil {
			log.Printf("Error updating statistics cache: %v", err)
		} else {
			lastCacheUpdate = time.Now()
		}
	}
}

// ResetCacheUpdateTimer forces the next read to refresh the cache.
func ResetCacheUpdateTimer() {
	cacheUpdateMutex.Lock()
	defer cacheUpdateMutex.Unlock()

	lastCacheUpdate = time.Time{}
}

// UpdateStatisticsCache recomputes all statistics and stores them in the cache
func UpdateStatisticsCache() error {
	repos := repository.GetGlobalRepositories()

	totalDeliveries, err := repos.Delivery.Count()
	if err != nil {
		log.Printf("Error counting total deliveries: %v", err)
		return err
	}

	today := time.Now().Format("2006-01-02")
	todayStart, _ := time.Parse("2006-01-02", today)
	todayEnd := todayStart.Add(24 * time.Hour)

	todayDeliveries, err := repos.Delivery.CountCreatedBetween(todayStart, todayEnd)
	if err != nil {
		log.Printf("Error counting today's deliveries: %v", err)
		return err
	}

	activeWebhooks, err := repos.Webhook.CountActive()
	if err != nil {
		log.Printf("Error counting active webhooks: %v", err)
		return err
	}

	if err := cache.Set(CacheKeyDeliveriesTotal, strconv.FormatInt(totalDeliveries, 10), CacheExpiration); err != nil {
		log.Printf("Error caching total deliveries: %v", err)
		return err
	}

	dailyKey := fmt.Sprintf(CacheKeyDeliveriesDaily, today)
	if err := cache.Set(dailyKey, strconv.FormatInt(todayDeliveries, 10), CacheExpiration); err != nil {
		log.Printf("Error caching today's deliveries: %v", err)
		return err
	}

	if err := cache.Set(CacheKeyWebhooksActive, strconv.FormatInt(activeWebhooks, 10), CacheExpiration); err != nil {
		log.Printf("Error caching active webhooks: %v", err)
		return err
	}

	return nil
}

// GetTotalDeliveries returns the total number of deliveries from cache or database
func GetTotalDeliveries() int {
	val, err := cache.Get(CacheKeyDeliveriesTotal)
	if err != nil {
		count, dberr := repository.GetGlobalRepositories().Delivery.Count()
		if dberr != nil {
			log.Printf("Error counting total deliveries: %v", dberr)
			return 0
		}

		if err := cache.Set(CacheKeyDeliveriesTotal, strconv.FormatInt(count, 10), CacheExpiration); err != nil {
			log.Printf("Error caching total deliveries: %v", err)
		}

		return int(count)
	}

	count, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0
	}

	return int(count)
}

// GetTodayDeliveries returns the number of deliveries created today from cache or database
func GetTodayDeliveries() int {
	today := time.Now().Format("2006-01-02")
	dailyKey := fmt.Sprintf(CacheKeyDeliveriesDaily, today)

	val, err := cache.Get(dailyKey)
	if err != nil {
		todayStart, _ := time.Parse("2006-01-02", today)
		todayEnd := todayStart.Add(24 * time.Hour)

		count, dberr := repository.GetGlobalRepositories().Delivery.CountCreatedBetween(todayStart, todayEnd)
		if dberr != nil {
			log.Printf("Error counting today's deliveries: %v", dberr)
			return 0
		}

		if err := cache.Set(dailyKey, strconv.FormatInt(count, 10), CacheExpiration); err != nil {
			log.Printf("Error caching today's deliveries: %v", err)
		}

		return int(count)
	}

	count, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0
	}

	return int(count)
}

// GetActiveWebhooks returns the number of active webhooks from cache or database
func GetActiveWebhooks() int {
	val, err := cache.Get(CacheKeyWebhooksActive)
	if err != nil {
		count, dberr := repository.GetGlobalRepositories().Webhook.CountActive()
		if dberr != nil {
			log.Printf("Error counting active webhooks: %v", dberr)
			return 0
		}

		if err := cache.Set(CacheKeyWebhooksActive, strconv.FormatInt(count, 10), CacheExpiration); err != nil {
			log.Printf("Error caching active webhooks: %v", err)
		}

		return int(count)
	}

	count, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0
	}

	return int(count)
}

// GetStatisticsData returns all statistics data as StatisticsData structure
func GetStatisticsData() StatisticsData {
	UpdateCacheIfNeeded()

	return StatisticsData{
		TodayDeliveries: GetTodayDeliveries(),
		TotalDeliveries: GetTotalDeliveries(),
		ActiveWebhooks:  GetActiveWebhooks(),
	}
}
