package catalog

const mediaFields = `
id
idMal
title { romaji english native userPreferred }
season
seasonYear
format
status
episodes
duration
genres
isAdult
synonyms
nextAiringEpisode { timeUntilAiring episode }
relations {
  edges {
    relationType(version: 2)
    node { id type format seasonYear }
  }
}`

const searchIDsQuery = `
query($id: [Int], $idMal: [Int], $id_not: [Int], $page: Int, $perPage: Int, $status: [MediaStatus], $sort: [MediaSort], $search: String, $season: MediaSeason, $year: Int, $format: MediaFormat) {
  Page(page: $page, perPage: $perPage) {
    pageInfo { hasNextPage }
    media(id_in: $id, idMal_in: $idMal, id_not_in: $id_not, type: ANIME, status_in: $status, search: $search, sort: $sort, season: $season, seasonYear: $year, format: $format) {` + mediaFields + `
    }
  }
}`

const searchNameQuery = `
query($page: Int, $perPage: Int, $sort: [MediaSort], $name: String, $status: [MediaStatus], $year: Int, $isAdult: Boolean) {
  Page(page: $page, perPage: $perPage) {
    pageInfo { hasNextPage }
    media(type: ANIME, search: $name, sort: $sort, status_in: $status, isAdult: $isAdult, format_not: MUSIC, seasonYear: $year) {` + mediaFields + `
    }
  }
}`

const airingScheduleQuery = `
query($id: Int) {
  Page(page: 1, perPage: 1000) {
    airingSchedules(mediaId: $id) { airingAt episode }
  }
}`

const compoundFragment = `
fragment med on Media {
  id
  title { romaji english native userPreferred }
  synonyms
}`
