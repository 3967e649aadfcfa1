// Command mediaserverd runs a UPnP/DLNA media server that exposes local
// media directories to network players, extracting the audio track of video
// files on demand through a bounded, LRU-evicted cache.
package main
